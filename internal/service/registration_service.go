package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/munreg/internal/mailer"
	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/receipt"
	"github.com/iliyamo/munreg/internal/repository"
	"github.com/iliyamo/munreg/internal/storage"
	"github.com/iliyamo/munreg/internal/telemetry"
	"github.com/iliyamo/munreg/internal/validation"
)

// RegistrationStore persists registrations.
type RegistrationStore interface {
	Create(ctx context.Context, reg model.Registration) (model.Registration, error)
	Get(ctx context.Context, id string) (model.Registration, error)
	SetReceiptURL(ctx context.Context, id, url string) error
	Page(ctx context.Context, size int, cursor string) (repository.Page[model.Registration], error)
}

// RateConfig reads and writes the exchange rate.
type RateConfig interface {
	RateSource
	SetRate(ctx context.Context, rate float64) error
}

// RegistrationInput is a registration form as submitted by a delegate.
type RegistrationInput struct {
	FirstName            string   `json:"userFirstName" validate:"required"`
	LastName             string   `json:"userLastName" validate:"required"`
	Email                string   `json:"userEmail" validate:"required,email"`
	Institution          string   `json:"userInstitution" validate:"required"`
	IsFaculty            bool     `json:"userIsFaculty"`
	SeatsRequested       []string `json:"seatsRequested" validate:"min=1,dive,required"`
	RequiresBackup       bool     `json:"requiresBackup"`
	BackupSeatsRequested []string `json:"backupSeatsRequested" validate:"dive,required"`
	IndependentDelegate  bool     `json:"independentDelegate"`
	IsBigGroup           bool     `json:"isBigGroup"`
	PaymentMethod        string   `json:"paymentMethod" validate:"required"`
	TransactionID        string   `json:"transactionId"`
}

// RegistrationService accepts registrations and produces their receipts.
type RegistrationService struct {
	registrations RegistrationStore
	committees    CommitteeStore
	rates         RateConfig
	renderer      ReceiptRenderer
	uploader      storage.Uploader
	sender        mailer.Sender
	log           *logrus.Entry
	Now           func() time.Time
}

func NewRegistrationService(regs RegistrationStore, committees CommitteeStore, rates RateConfig, renderer ReceiptRenderer, uploader storage.Uploader, sender mailer.Sender) *RegistrationService {
	return &RegistrationService{
		registrations: regs,
		committees:    committees,
		rates:         rates,
		renderer:      renderer,
		uploader:      uploader,
		sender:        sender,
		log:           logrus.WithField("component", "registration"),
		Now:           time.Now,
	}
}

// Submit stores a registration, then renders, uploads and emails its
// receipt. Receipt and email failures are logged; the registration stands.
func (s *RegistrationService) Submit(ctx context.Context, in RegistrationInput) (model.Registration, error) {
	if err := validation.Struct(in); err != nil {
		return model.Registration{}, err
	}
	reg := model.Registration{
		UserFirstName:       strings.TrimSpace(in.FirstName),
		UserLastName:        strings.TrimSpace(in.LastName),
		UserEmail:           repository.NormalizeEmail(in.Email),
		UserInstitution:     strings.TrimSpace(in.Institution),
		UserIsFaculty:       in.IsFaculty,
		UserID:              telemetry.UserIDFrom(ctx),
		Seats:               len(in.SeatsRequested),
		SeatsRequested:      in.SeatsRequested,
		RequiresBackup:      in.RequiresBackup,
		IndependentDelegate: in.IndependentDelegate,
		IsBigGroup:          in.IsBigGroup,
		PaymentMethod:       strings.TrimSpace(in.PaymentMethod),
		TransactionID:       strings.TrimSpace(in.TransactionID),
		CreatedAt:           s.Now(),
	}
	if in.RequiresBackup {
		reg.BackupSeatsRequested = in.BackupSeatsRequested
	}
	reg, err := s.registrations.Create(ctx, reg)
	if err != nil {
		return model.Registration{}, err
	}
	log := s.log.WithField("registration_id", reg.ID)

	doc, err := s.render(ctx, reg)
	if err != nil {
		log.WithError(err).Error("receipt not rendered")
		return reg, nil
	}
	path := receipt.RegistrationFileName(reg.ID, reg.CreatedAt)
	url, err := s.uploader.Upload(ctx, doc.PDF, path, "application/pdf")
	if err != nil {
		log.WithError(err).Error("receipt not uploaded")
	} else if err := s.registrations.SetReceiptURL(ctx, reg.ID, url); err != nil {
		log.WithError(err).Error("receipt url not saved")
	} else {
		reg.ReceiptURL = url
	}

	msg := mailer.RegistrationMessage(reg.FullName(), reg.UserEmail, reg.SeatsRequested, reg.ReceiptURL, doc.PDF, path)
	if err := s.sender.Send(ctx, msg); err != nil {
		log.WithError(err).Warn("registration email not sent")
	}
	return reg, nil
}

// Receipt renders the receipt of a stored registration with the current
// prices and rate.
func (s *RegistrationService) Receipt(ctx context.Context, id string) (model.Registration, receipt.Receipt, error) {
	reg, err := s.registrations.Get(ctx, id)
	if err != nil {
		return model.Registration{}, receipt.Receipt{}, err
	}
	doc, err := s.render(ctx, reg)
	return reg, doc, err
}

func (s *RegistrationService) render(ctx context.Context, reg model.Registration) (receipt.Receipt, error) {
	cs, err := s.committees.List(ctx)
	if err != nil {
		return receipt.Receipt{}, err
	}
	rate, err := s.rates.Rate(ctx)
	if err != nil {
		return receipt.Receipt{}, err
	}
	return s.renderer.Render(reg, repository.PriceTable(cs), rate, receipt.Options{Title: receipt.RegistrationTitle})
}

// List pages through registrations, newest first.
func (s *RegistrationService) List(ctx context.Context, size int, cursor string) (repository.Page[model.Registration], error) {
	return s.registrations.Page(ctx, size, cursor)
}

func (s *RegistrationService) GetRate(ctx context.Context) (float64, error) { return s.rates.Rate(ctx) }

func (s *RegistrationService) SetRate(ctx context.Context, rate float64) error {
	if rate <= 0 {
		return invalid("rate", "rate must be greater than 0")
	}
	return s.rates.SetRate(ctx, rate)
}
