package service

import (
	"context"
	"database/sql"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/munreg/internal/mailer"
	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/repository"
	"github.com/iliyamo/munreg/internal/telemetry"
	"github.com/iliyamo/munreg/internal/utils"
	"github.com/iliyamo/munreg/internal/validation"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// AccountStore persists credentials.
type AccountStore interface {
	Create(ctx context.Context, email, password, displayName string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	SetPassword(ctx context.Context, id uint64, password string, cost int) error
	Delete(ctx context.Context, id uint64) error
}

// TokenStore persists hashed refresh and reset tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
	StoreReset(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ConsumeReset(ctx context.Context, tokenHash string) (uint64, error)
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	Put(ctx context.Context, p model.Profile) error
	Get(ctx context.Context, id string) (model.Profile, error)
	List(ctx context.Context) ([]model.Profile, error)
	SetAdmin(ctx context.Context, id string, admin bool) error
	Delete(ctx context.Context, id string) error
}

// AuthConfig holds token lifetimes and secrets.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	ResetTTL       time.Duration
	// ResetURL is the page receiving ?token=...
	ResetURL string
}

// Session is what a successful login or refresh returns.
type Session struct {
	AccessToken      string        `json:"access_token"`
	AccessExpiresAt  time.Time     `json:"access_expires_at"`
	RefreshToken     string        `json:"refresh_token"`
	RefreshExpiresAt time.Time     `json:"refresh_expires_at"`
	Account          model.Account `json:"account"`
	Role             string        `json:"role"`
}

// AuthService manages accounts and sessions. Every call is recorded by the
// telemetry tracker under the auth service.
type AuthService struct {
	accounts AccountStore
	tokens   TokenStore
	profiles ProfileStore
	sender   mailer.Sender
	tracker  *telemetry.Tracker
	cfg      AuthConfig
	log      *logrus.Entry
	Now      func() time.Time
}

func NewAuthService(accounts AccountStore, tokens TokenStore, profiles ProfileStore, sender mailer.Sender, tracker *telemetry.Tracker, cfg AuthConfig) *AuthService {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		profiles: profiles,
		sender:   sender,
		tracker:  tracker,
		cfg:      cfg,
		log:      logrus.WithField("component", "auth"),
		Now:      time.Now,
	}
}

func authOp(op, email string) telemetry.Options {
	o := telemetry.Options{Service: telemetry.ServiceAuth, Operation: op}
	if email != "" {
		o.Metadata = map[string]any{"emailDomain": emailDomain(email)}
	}
	return o
}

func checkCredentials(email, password string) error {
	var errs validation.Errors
	if err := validation.Var("email", strings.TrimSpace(email), "required,email"); err != nil {
		var ferrs validation.Errors
		if !errors.As(err, &ferrs) {
			return err
		}
		errs = append(errs, ferrs...)
	}
	if len(password) < MinPasswordLength {
		errs = append(errs, validation.FieldError{Field: "password", Message: "password must be at least 6 characters"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Register creates an account and its profile. The profile name is split
// from displayName on the first space.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (model.Account, error) {
	return telemetry.Track(ctx, s.tracker, authOp("register", email), func(ctx context.Context) (model.Account, error) {
		if err := checkCredentials(email, password); err != nil {
			return model.Account{}, err
		}
		if strings.TrimSpace(displayName) == "" {
			return model.Account{}, invalid("displayName", "this field is required")
		}
		id, err := s.accounts.Create(ctx, email, password, displayName, s.cfg.BcryptCost)
		if err != nil {
			return model.Account{}, err
		}
		first, last := splitName(displayName)
		profile := model.Profile{
			ID:        strconv.FormatUint(id, 10),
			FirstName: first,
			LastName:  last,
			Email:     repository.NormalizeEmail(email),
			CreatedAt: s.Now(),
		}
		if err := s.profiles.Put(ctx, profile); err != nil {
			// no profile, no usable account
			if derr := s.accounts.Delete(ctx, id); derr != nil {
				s.log.WithError(derr).WithField("account_id", id).Error("orphan account after profile failure")
			}
			return model.Account{}, errors.Wrap(err, "create profile")
		}
		return s.accounts.GetByID(ctx, id)
	})
}

// Login verifies credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	return telemetry.Track(ctx, s.tracker, authOp("login", email), func(ctx context.Context) (Session, error) {
		acc, err := s.accounts.GetByEmail(ctx, email)
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrInvalidCredentials
		}
		if err != nil {
			return Session{}, err
		}
		if !utils.VerifyPassword(acc.PasswordHash, password) {
			return Session{}, ErrInvalidCredentials
		}
		if !acc.IsActive {
			return Session{}, ErrAccountDisabled
		}
		if utils.PasswordCost(acc.PasswordHash) < s.cfg.BcryptCost {
			// rehash with the configured cost while the plain password is at hand
			if err := s.accounts.SetPassword(ctx, acc.ID, password, s.cfg.BcryptCost); err != nil {
				s.log.WithError(err).WithField("account", acc.ID).Warn("password rehash failed")
			}
		}
		return s.issue(ctx, acc)
	})
}

// Refresh rotates a refresh token: the old one is revoked and a new pair issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	return telemetry.Track(ctx, s.tracker, authOp("refresh", ""), func(ctx context.Context) (Session, error) {
		hash := utils.HashToken(strings.TrimSpace(refreshToken))
		uid, err := s.tokens.ValidateRefresh(ctx, hash)
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrInvalidToken
		}
		if err != nil {
			return Session{}, err
		}
		if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
			return Session{}, err
		}
		acc, err := s.accounts.GetByID(ctx, uid)
		if err != nil {
			return Session{}, err
		}
		if !acc.IsActive {
			return Session{}, ErrAccountDisabled
		}
		return s.issue(ctx, acc)
	})
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tracker.Do(ctx, authOp("logout", ""), func(ctx context.Context) error {
		return s.tokens.RevokeByHash(ctx, utils.HashToken(strings.TrimSpace(refreshToken)))
	})
}

// CurrentAccount returns the account of the authenticated caller, or nil
// when the request is anonymous.
func (s *AuthService) CurrentAccount(ctx context.Context) (*model.Account, error) {
	raw := telemetry.UserIDFrom(ctx)
	if raw == "" {
		return nil, nil
	}
	return telemetry.Track(ctx, s.tracker, authOp("currentAccount", ""), func(ctx context.Context) (*model.Account, error) {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, ErrInvalidToken
		}
		acc, err := s.accounts.GetByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &acc, nil
	})
}

// Profile returns the profile of an account.
func (s *AuthService) Profile(ctx context.Context, id uint64) (model.Profile, error) {
	return s.profiles.Get(ctx, strconv.FormatUint(id, 10))
}

// ResetPassword emails a single-use reset link. Unknown emails succeed
// without sending anything.
func (s *AuthService) ResetPassword(ctx context.Context, email string) error {
	return s.tracker.Do(ctx, authOp("resetPassword", email), func(ctx context.Context) error {
		if err := validation.Var("email", strings.TrimSpace(email), "required,email"); err != nil {
			return err
		}
		acc, err := s.accounts.GetByEmail(ctx, email)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := utils.NewOpaqueToken(32)
		if err != nil {
			return err
		}
		if err := s.tokens.StoreReset(ctx, acc.ID, utils.HashToken(raw), s.Now().UTC().Add(s.cfg.ResetTTL)); err != nil {
			return err
		}
		link := s.cfg.ResetURL + "?token=" + url.QueryEscape(raw)
		return s.sender.Send(ctx, mailer.PasswordResetMessage(acc.Email, link))
	})
}

// ConfirmPasswordReset sets a new password with a reset token and signs
// out every session of the account.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return s.tracker.Do(ctx, authOp("confirmPasswordReset", ""), func(ctx context.Context) error {
		if len(newPassword) < MinPasswordLength {
			return invalid("password", "password must be at least 6 characters")
		}
		uid, err := s.tokens.ConsumeReset(ctx, utils.HashToken(strings.TrimSpace(token)))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		if err != nil {
			return err
		}
		return s.setPassword(ctx, uid, newPassword)
	})
}

// SetPassword replaces the password of the account with email. Operator use.
func (s *AuthService) SetPassword(ctx context.Context, email, newPassword string) error {
	return s.tracker.Do(ctx, authOp("setPassword", email), func(ctx context.Context) error {
		if len(newPassword) < MinPasswordLength {
			return invalid("password", "password must be at least 6 characters")
		}
		acc, err := s.accounts.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		return s.setPassword(ctx, acc.ID, newPassword)
	})
}

func (s *AuthService) setPassword(ctx context.Context, uid uint64, pw string) error {
	if err := s.accounts.SetPassword(ctx, uid, pw, s.cfg.BcryptCost); err != nil {
		return err
	}
	return s.tokens.RevokeAllForUser(ctx, uid)
}

func (s *AuthService) issue(ctx context.Context, acc model.Account) (Session, error) {
	role := model.RoleUser
	p, err := s.profiles.Get(ctx, strconv.FormatUint(acc.ID, 10))
	switch {
	case err == nil:
		role = p.Role()
	case !errors.Is(err, repository.ErrNotFound):
		return Session{}, err
	}
	at, err := utils.NewAccessToken(s.cfg.JWTSecret, acc.ID, role, s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	rt, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, acc.ID, utils.HashToken(rt.Raw), rt.Exp); err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken:      at.Token,
		AccessExpiresAt:  at.Exp,
		RefreshToken:     rt.Raw,
		RefreshExpiresAt: rt.Exp,
		Account:          acc,
		Role:             role,
	}, nil
}
