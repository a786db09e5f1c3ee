package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/mailer"
	"github.com/iliyamo/munreg/internal/middleware"
	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/receipt"
	"github.com/iliyamo/munreg/internal/repository"
	"github.com/iliyamo/munreg/internal/service"
	"github.com/iliyamo/munreg/internal/storage"
	"github.com/iliyamo/munreg/internal/telemetry"
	"github.com/iliyamo/munreg/internal/validation"
)

type fixture struct {
	e           *echo.Echo
	store       *docstore.Memory
	mail        *mailer.Console
	committeeID string
	changes     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{e: echo.New(), store: docstore.NewMemory(), mail: mailer.NewConsole()}
	committees := repository.NewCommitteeRepo(f.store)
	id, err := committees.Create(context.Background(), model.Committee{
		Name:  "UNICEF",
		Topic: "Child nutrition",
		Seats: 3,
		SeatsList: model.SeatList{
			{Name: "Brazil", Available: true},
			{Name: "India", Available: true},
			{Name: "Japan", Available: false},
		},
	})
	require.NoError(t, err)
	f.committeeID = id

	rates := repository.NewConfigRepo(f.store, 180)
	uploader := storage.NewLocal(t.TempDir(), "http://munreg.test")
	gen := receipt.NewGenerator()
	seats := service.NewSeatService(service.SeatDeps{
		Committees: committees,
		Rates:      rates,
		Journal:    repository.NewAssignmentRepo(f.store),
		Renderer:   gen,
		Uploader:   uploader,
		Sender:     f.mail,
	})
	regs := service.NewRegistrationService(repository.NewRegistrationRepo(f.store), committees, rates, gen, uploader, f.mail)
	users := service.NewUserDirectory(repository.NewProfileRepo(f.store), nil)

	ch := NewCommitteeHandler(seats, time.Second)
	ch.OnChange = func(context.Context) { f.changes++ }
	rh := NewRegistrationHandler(regs, time.Second)
	uh := NewUserHandler(users, time.Second)
	ah := NewAuditHandler(repository.NewRequestLogRepo(f.store), repository.NewAssignmentRepo(f.store), time.Second)

	// stands in for JWTAuth
	asOperator := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.KeyUserID, "1")
			return next(c)
		}
	}
	f.e.GET("/committees", ch.List)
	f.e.GET("/committees/:id", ch.Get)
	f.e.POST("/committees/:id/assignments", ch.Assign)
	f.e.POST("/committees/:id/seats/:index/toggle", ch.Toggle)
	f.e.PUT("/committees/:id/seats", ch.SetAll)
	f.e.POST("/registrations", rh.Submit)
	f.e.GET("/registrations", rh.List)
	f.e.GET("/registrations/:id/receipt", rh.Receipt)
	f.e.GET("/rate", rh.GetRate)
	f.e.PUT("/rate", rh.SetRate)
	f.e.GET("/users", uh.List, asOperator)
	f.e.GET("/users/:id", uh.Get, asOperator)
	f.e.PUT("/users/:id/admin", uh.SetAdmin, asOperator)
	f.e.DELETE("/users/:id", uh.Delete, asOperator)
	f.e.GET("/request-logs", ah.RequestLogs)
	f.e.GET("/assignments", ah.Assignments)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestRespondErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{validation.Errors{{Field: "x", Message: "bad"}}, http.StatusBadRequest},
		{&service.ConfirmationError{Prompt: "sure?"}, http.StatusPreconditionRequired},
		{&service.SagaError{Failed: service.StepSendEmail, Err: errors.New("smtp down")}, http.StatusBadGateway},
		{&service.SagaError{Failed: service.StepPersistSeats, Err: service.ErrStaleRevision}, http.StatusConflict},
		{errors.Wrap(service.ErrStaleRevision, "committee"), http.StatusConflict},
		{repository.ErrNotFound, http.StatusNotFound},
		{repository.ErrEmailExists, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrInvalidToken, http.StatusUnauthorized},
		{service.ErrAccountDisabled, http.StatusForbidden},
		{docstore.ErrInvalidCursor, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, respondError(c, tc.err))
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestCommitteeListAndGet(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/committees?q=nutrition", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ov service.Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ov))
	require.Len(t, ov.Committees, 1)
	assert.Equal(t, model.SeatStats{Total: 3, Available: 2, Occupied: 1}, ov.Committees[0].Stats)

	rec = f.do(http.MethodGet, "/committees?q=zzz", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ov))
	assert.Empty(t, ov.Committees)
	assert.Equal(t, 1, ov.Stats.Committees)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/committees/missing", "").Code)
}

func TestAssignNeedsConfirmationThenSucceeds(t *testing.T) {
	f := newFixture(t)
	target := "/committees/" + f.committeeID + "/assignments"

	rec := f.do(http.MethodPost, target, `{"seatIndices":[0,1],"recipientName":"Eva Gil","recipientEmail":"eva@mun.org"}`)
	require.Equal(t, http.StatusPreconditionRequired, rec.Code)
	assert.Equal(t, "Assign 2 seat(s) to Eva Gil (eva@mun.org)?", decodeMap(t, rec)["prompt"])
	assert.Zero(t, f.changes)

	rec = f.do(http.MethodPost, target, `{"seatIndices":[],"recipientName":"Eva Gil","recipientEmail":"eva@mun.org","confirmed":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, target, `{"seatIndices":[0,1],"recipientName":"Eva Gil","recipientEmail":"eva@mun.org","confirmed":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res service.AssignResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 0, res.Committee.Stats().Available)
	assert.True(t, strings.HasPrefix(res.ReceiptURL, "http://munreg.test/files/assignments/UNICEF-"))
	assert.Equal(t, 1, f.changes)
	require.Len(t, f.mail.Sent(), 1)

	rec = f.do(http.MethodGet, "/assignments?status=completed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page repository.Page[model.Assignment]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, []string{"UNICEF - Brazil", "UNICEF - India"}, page.Items[0].SeatLabels)
}

func TestAssignSurvivesClientDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/committees/"+f.committeeID+"/assignments",
		strings.NewReader(`{"seatIndices":[0],"recipientName":"Eva Gil","recipientEmail":"eva@mun.org","confirmed":true}`)).
		WithContext(ctx)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, f.mail.Sent(), 1)
	cm, err := repository.NewCommitteeRepo(f.store).Get(context.Background(), f.committeeID)
	require.NoError(t, err)
	assert.False(t, cm.SeatsList[0].Available)
}

func TestAssignEmailFailureReportsSteps(t *testing.T) {
	f := newFixture(t)
	f.mail.Err = errors.New("mailbox full")

	rec := f.do(http.MethodPost, "/committees/"+f.committeeID+"/assignments",
		`{"seatIndices":[0],"recipientName":"Eva","recipientEmail":"eva@mun.org","confirmed":true}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, service.StepSendEmail, body["failedStep"])
	assert.Len(t, body["steps"], 7)
	assert.Zero(t, f.changes)
}

func TestToggleAndSetAll(t *testing.T) {
	f := newFixture(t)
	base := "/committees/" + f.committeeID

	rec := f.do(http.MethodPost, base+"/seats/2/toggle?revision=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got service.CommitteeSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.SeatsList[2].Available)
	assert.Equal(t, uint64(2), got.Revision)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, base+"/seats/2/toggle?revision=1", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, base+"/seats/x/toggle", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, base+"/seats/9/toggle", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, base+"/seats/0/toggle?revision=-1", "").Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, base+"/seats", `{"confirmed":true}`).Code)
	assert.Equal(t, http.StatusPreconditionRequired, f.do(http.MethodPut, base+"/seats", `{"available":false}`).Code)

	rec = f.do(http.MethodPut, base+"/seats", `{"available":false,"confirmed":true,"expectedRevision":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.SeatStats{Total: 3, Occupied: 3}, got.Stats)
	assert.Equal(t, 2, f.changes)
}

func TestRegistrationSubmitAndReceipt(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/registrations", `{"userFirstName":"Luis"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/registrations", `{
		"userFirstName":"Luis","userLastName":"Pérez","userEmail":"luis@school.edu",
		"userInstitution":"Los Robles","seatsRequested":["UNICEF - Brazil"],
		"paymentMethod":"zelle","transactionId":"Z-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg model.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	require.NotEmpty(t, reg.ID)
	assert.NotEmpty(t, reg.ReceiptURL)

	rec = f.do(http.MethodGet, "/registrations/"+reg.ID+"/receipt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "registration-"+reg.ID+".pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/registrations/nope/receipt", "").Code)

	rec = f.do(http.MethodGet, "/registrations?size=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page repository.Page[model.Registration]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Items, 1)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/registrations?size=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/registrations?cursor=bad*cursor", "").Code)
}

func TestRate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/rate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 180.0, decodeMap(t, rec)["rate"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/rate", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/rate", `{"rate":0}`).Code)

	rec = f.do(http.MethodPut, "/rate", `{"rate":39.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 39.5, decodeMap(t, f.do(http.MethodGet, "/rate", ""))["rate"])
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	profiles := repository.NewProfileRepo(f.store)
	for _, p := range []model.Profile{
		{ID: "1", FirstName: "Op", Email: "op@mun.org", IsAdmin: true, CreatedAt: time.Now()},
		{ID: "2", FirstName: "Ana", Email: "ana@mun.org", Institution: "Los Robles", CreatedAt: time.Now()},
	} {
		require.NoError(t, profiles.Put(context.Background(), p))
	}

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/users?role=owner", "").Code)

	rec := f.do(http.MethodGet, "/users?role=user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list userListResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "2", list.Users[0].ID)
	assert.Equal(t, service.UserStats{Total: 2, Admins: 1, Regular: 1}, list.Stats)
	assert.Equal(t, []string{"Los Robles"}, list.Institutions)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/users/1/admin", `{"isAdmin":false}`).Code)
	rec = f.do(http.MethodPut, "/users/2/admin", `{"isAdmin":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeMap(t, rec)["isAdmin"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/users/1", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/users/2", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/users/2", "").Code)
}

func TestRequestLogs(t *testing.T) {
	f := newFixture(t)
	tracker := telemetry.NewTracker(f.store, nil)
	_ = tracker.Do(context.Background(), telemetry.Options{Service: telemetry.ServiceData, Operation: "getAll"},
		func(context.Context) error { return nil })
	_ = tracker.Do(context.Background(), telemetry.Options{Service: telemetry.ServiceData, Operation: "update"},
		func(context.Context) error { return errors.New("denied") })

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/request-logs?status=maybe", "").Code)

	rec := f.do(http.MethodGet, "/request-logs?status=error", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page repository.Page[model.RequestLog]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "update", page.Items[0].Operation)
}

// noAccounts is an empty account store.
type noAccounts struct{}

func (noAccounts) Create(context.Context, string, string, string, int) (uint64, error) {
	return 0, errors.New("read only")
}
func (noAccounts) GetByEmail(context.Context, string) (model.Account, error) {
	return model.Account{}, sql.ErrNoRows
}
func (noAccounts) GetByID(context.Context, uint64) (model.Account, error) {
	return model.Account{}, sql.ErrNoRows
}
func (noAccounts) SetPassword(context.Context, uint64, string, int) error { return sql.ErrNoRows }
func (noAccounts) Delete(context.Context, uint64) error                   { return nil }

func TestAuthErrors(t *testing.T) {
	store := docstore.NewMemory()
	auth := service.NewAuthService(noAccounts{}, nil, repository.NewProfileRepo(store), mailer.NewConsole(),
		telemetry.NewTracker(store, nil), service.AuthConfig{JWTSecret: "s", AccessTTLMin: 5, RefreshTTLDays: 1})
	h := NewAuthHandler(auth, time.Second)
	e := echo.New()
	e.POST("/register", h.Register)
	e.POST("/login", h.Login)
	e.POST("/refresh", h.Refresh)
	e.POST("/reset", h.PasswordReset)
	e.GET("/me", h.Me)

	post := func(target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/register", `{"email":"nope","password":"123","displayName":"A"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decodeMap(t, rec)["fields"], 2)

	assert.Equal(t, http.StatusUnauthorized, post("/login", `{"email":"a@mun.org","password":"secret1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post("/refresh", `{}`).Code)
	assert.Equal(t, http.StatusAccepted, post("/reset", `{"email":"ghost@mun.org"}`).Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
