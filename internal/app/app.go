// Package app wires stores, remote services and workflows from
// configuration. The HTTP server and the admin CLI share it.
package app

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/iliyamo/munreg/internal/config"
	"github.com/iliyamo/munreg/internal/database"
	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/logger"
	"github.com/iliyamo/munreg/internal/mailer"
	"github.com/iliyamo/munreg/internal/queue"
	"github.com/iliyamo/munreg/internal/receipt"
	"github.com/iliyamo/munreg/internal/repository"
	"github.com/iliyamo/munreg/internal/service"
	"github.com/iliyamo/munreg/internal/storage"
	"github.com/iliyamo/munreg/internal/telemetry"
)

// App holds the wired components.
type App struct {
	Cfg     config.Config
	DB      *sql.DB
	Store   docstore.Store
	Tracker *telemetry.Tracker

	Committees  *repository.CommitteeRepo
	Profiles    *repository.ProfileRepo
	Accounts    *repository.AccountRepo
	Assignments *repository.AssignmentRepo
	RequestLogs *repository.RequestLogRepo

	Uploader  storage.Uploader
	Sender    mailer.Sender
	Publisher *queue.Publisher

	Auth          *service.AuthService
	Seats         *service.SeatService
	Registrations *service.RegistrationService
	Users         *service.UserDirectory
}

// New connects to MySQL, applies migrations and builds every workflow.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := database.Open(ctx, database.Conn{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	a, err := Build(cfg, db, docstore.NewMySQL(db))
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Build wires the application over an open database and a raw document
// store. Request logs go to raw directly; everything else reads and writes
// through the tracked store.
func Build(cfg config.Config, db *sql.DB, raw docstore.Store) (*App, error) {
	a := &App{Cfg: cfg, DB: db}

	if cfg.Telemetry.Enabled {
		ip := telemetry.NewIPResolver(cfg.Telemetry.IPEndpoints, cfg.Telemetry.IPTimeout, nil)
		a.Tracker = telemetry.NewTracker(raw, ip)
	}
	a.Store = telemetry.WrapStore(raw, a.Tracker)

	uploader, err := NewUploader(cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.Uploader = uploader
	a.Sender = NewSender(cfg.Mail)
	if cfg.Queue.Enabled {
		a.Publisher = queue.NewPublisher(cfg.Queue.URL, cfg.Queue.Queue)
	}

	a.Committees = repository.NewCommitteeRepo(a.Store)
	a.Profiles = repository.NewProfileRepo(a.Store)
	a.Assignments = repository.NewAssignmentRepo(a.Store)
	a.RequestLogs = repository.NewRequestLogRepo(raw)
	rates := repository.NewConfigRepo(a.Store, cfg.DefaultRate)
	generator := receipt.NewGenerator()

	var (
		accounts service.AccountStore
		tokens   service.TokenStore
	)
	if db != nil {
		a.Accounts = repository.NewAccountRepo(db)
		accounts, tokens = a.Accounts, repository.NewTokenRepo(db)
	}
	a.Auth = service.NewAuthService(accounts, tokens, a.Profiles, a.Sender, a.Tracker, service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
		ResetTTL:       cfg.ResetTTL,
		ResetURL:       cfg.PasswordResetURL,
	})

	deps := service.SeatDeps{
		Committees: a.Committees,
		Rates:      rates,
		Journal:    a.Assignments,
		Renderer:   generator,
		Uploader:   a.Uploader,
		Sender:     a.Sender,
	}
	// a nil *Publisher must not become a non-nil interface
	if a.Publisher != nil {
		deps.Publisher = a.Publisher
	}
	a.Seats = service.NewSeatService(deps)
	a.Registrations = service.NewRegistrationService(repository.NewRegistrationRepo(a.Store), a.Committees, rates, generator, a.Uploader, a.Sender)
	a.Users = service.NewUserDirectory(a.Profiles, accounts)
	return a, nil
}

// NewUploader selects the storage driver.
func NewUploader(s config.StorageConfig) (storage.Uploader, error) {
	switch s.Driver {
	case "supabase":
		if s.SupabaseURL == "" || s.SupabaseKey == "" {
			return nil, errors.New("supabase storage needs SUPABASE_URL and SUPABASE_SERVICE_KEY")
		}
		return storage.NewSupabase(s.SupabaseURL, s.SupabaseKey, s.Bucket, s.Timeout), nil
	case "local", "":
		return storage.NewLocal(s.LocalDir, s.PublicBaseURL), nil
	}
	return nil, errors.Errorf("unknown storage driver %q", s.Driver)
}

// NewSender selects the mail transport. Sendgrid without a key falls back
// to the console.
func NewSender(m config.MailConfig) mailer.Sender {
	if m.Driver == "sendgrid" {
		if m.SendgridKey != "" {
			return mailer.NewSendgrid(m.SendgridKey, m.FromName, m.FromAddress)
		}
		logger.For("mailer").Warn("SENDGRID_API_KEY is empty, mail goes to the console")
	}
	return mailer.NewConsole()
}

// Close releases the database.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
