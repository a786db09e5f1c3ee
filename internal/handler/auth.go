package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/repository"
	"github.com/iliyamo/munreg/internal/service"
)

// AuthHandler serves sign-up, sessions and password resets.
type AuthHandler struct {
	Auth    *service.AuthService
	Timeout time.Duration
}

func NewAuthHandler(auth *service.AuthService, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Auth: auth, Timeout: timeout}
}

// ----- DTOs -----

type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type resetReq struct {
	Email string `json:"email"`
}

type resetConfirmReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID          uint64 `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func sessionResp(s service.Session) authResp {
	return authResp{
		User:    userPart{ID: s.Account.ID, Email: s.Account.Email, DisplayName: s.Account.DisplayName, Role: s.Role},
		Access:  tokenPart{Token: s.AccessToken, Expires: s.AccessExpiresAt},
		Refresh: tokenPart{Token: s.RefreshToken, Expires: s.RefreshExpiresAt},
	}
}

// Register creates the account and its profile, then opens a session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if _, err := h.Auth.Register(ctx, req.Email, req.Password, req.DisplayName); err != nil {
		return respondError(c, err)
	}
	s, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, sessionResp(s))
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	s, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	s, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Logout revokes the given refresh token. Unknown tokens are not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, strings.TrimSpace(req.RefreshToken)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PasswordReset mails a reset link. The answer is the same whether or not
// the email is registered.
func (h *AuthHandler) PasswordReset(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "sent"})
}

func (h *AuthHandler) PasswordResetConfirm(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Auth.ConfirmPasswordReset(ctx, strings.TrimSpace(req.Token), req.Password); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type meResp struct {
	Account model.Account  `json:"account"`
	Profile *model.Profile `json:"profile,omitempty"`
	Role    string         `json:"role"`
}

// Me returns the signed-in account and its profile, if any.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	acc, err := h.Auth.CurrentAccount(ctx)
	if err != nil {
		return respondError(c, err)
	}
	if acc == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not signed in"})
	}
	resp := meResp{Account: *acc, Role: model.RoleUser}
	p, err := h.Auth.Profile(ctx, acc.ID)
	switch {
	case err == nil:
		resp.Profile = &p
		resp.Role = p.Role()
	case !errors.Is(err, repository.ErrNotFound):
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
