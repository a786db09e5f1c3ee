package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/model"
)

// Collection names.
const (
	CommitteesCollection    = "committees"
	UsersCollection         = "users"
	RegistrationsCollection = "registrations"
	AssignmentsCollection   = "assignments"
	ConfigCollection        = "config"
)

// CommitteeRepo reads and writes the `committees` collection.
type CommitteeRepo struct {
	store docstore.Store
	log   *logrus.Entry
}

func NewCommitteeRepo(store docstore.Store) *CommitteeRepo {
	return &CommitteeRepo{store: store, log: logrus.WithField("component", "committees")}
}

// List returns every valid committee. Invalid documents are logged and skipped.
func (r *CommitteeRepo) List(ctx context.Context) ([]model.Committee, error) {
	docs, err := r.store.GetAll(ctx, CommitteesCollection)
	if err != nil {
		return nil, err
	}
	return decodeAll[model.Committee](docs, func(id string, err error) {
		r.log.WithError(err).WithField("id", id).Warn("skipping committee")
	}), nil
}

// Get loads one committee with its current revision.
func (r *CommitteeRepo) Get(ctx context.Context, id string) (model.Committee, error) {
	doc, err := r.store.GetByID(ctx, CommitteesCollection, id)
	if err != nil {
		return model.Committee{}, err
	}
	var c model.Committee
	if err := decode(doc, &c); err != nil {
		return model.Committee{}, err
	}
	return c, nil
}

// Create stores a new committee and returns its id.
func (r *CommitteeRepo) Create(ctx context.Context, c model.Committee) (string, error) {
	data, err := docstore.Encode(c)
	if err != nil {
		return "", err
	}
	return r.store.Add(ctx, CommitteesCollection, data)
}

// Put stores c under id, replacing any existing document.
func (r *CommitteeRepo) Put(ctx context.Context, id string, c model.Committee) error {
	data, err := docstore.Encode(c)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, CommitteesCollection, id, data)
}

// ReplaceSeats overwrites the seat list of committee id, but only while the
// stored revision still equals revision. It returns the new revision.
func (r *CommitteeRepo) ReplaceSeats(ctx context.Context, id string, revision uint64, seats model.SeatList) (uint64, error) {
	if seats == nil {
		seats = model.SeatList{}
	}
	err := r.store.UpdateIfRevision(ctx, CommitteesCollection, id, revision, docstore.Data{"seatsList": seats})
	if err != nil {
		return 0, err
	}
	return revision + 1, nil
}

// PriceTable maps committee name to its double-seat flag.
func PriceTable(cs []model.Committee) map[string]bool {
	out := make(map[string]bool, len(cs))
	for _, c := range cs {
		out[c.Name] = c.IsDoubleSeat
	}
	return out
}

// ConfigRepo reads config/registration.
type ConfigRepo struct {
	store       docstore.Store
	defaultRate float64
	log         *logrus.Entry
}

func NewConfigRepo(store docstore.Store, defaultRate float64) *ConfigRepo {
	if defaultRate <= 0 {
		defaultRate = model.DefaultRate
	}
	return &ConfigRepo{store: store, defaultRate: defaultRate, log: logrus.WithField("component", "config")}
}

// Rate returns the configured exchange rate. A missing, invalid or
// unreadable document yields the default rate.
func (r *ConfigRepo) Rate(ctx context.Context) (float64, error) {
	doc, err := r.store.GetByID(ctx, ConfigCollection, "registration")
	if errors.Is(err, docstore.ErrNotFound) {
		return r.defaultRate, nil
	}
	if err != nil {
		r.log.WithError(err).WithField("default", r.defaultRate).Warn("rate unavailable, using default")
		return r.defaultRate, nil
	}
	var cfg model.RegistrationConfig
	if err := decode(doc, &cfg); err != nil {
		r.log.WithError(err).Warn("invalid rate document, using default")
		return r.defaultRate, nil
	}
	return cfg.Rate, nil
}

// SetRate replaces the exchange rate.
func (r *ConfigRepo) SetRate(ctx context.Context, rate float64) error {
	if rate <= 0 {
		return errors.New("rate must be positive")
	}
	return r.store.Set(ctx, ConfigCollection, "registration", docstore.Data{"rate": rate})
}

// stamp normalises timestamps so their stored text sorts chronologically.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Second)
}
