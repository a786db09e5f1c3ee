package repository

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/model"
)

// RegistrationRepo reads and writes the `registrations` collection.
type RegistrationRepo struct {
	store docstore.Store
	log   *logrus.Entry
}

func NewRegistrationRepo(store docstore.Store) *RegistrationRepo {
	return &RegistrationRepo{store: store, log: logrus.WithField("component", "registrations")}
}

// Create stores reg and returns it with its id and normalised CreatedAt.
func (r *RegistrationRepo) Create(ctx context.Context, reg model.Registration) (model.Registration, error) {
	reg.CreatedAt = stamp(reg.CreatedAt)
	data, err := docstore.Encode(reg)
	if err != nil {
		return reg, err
	}
	id, err := r.store.Add(ctx, RegistrationsCollection, data)
	if err != nil {
		return reg, err
	}
	reg.ID = id
	return reg, nil
}

func (r *RegistrationRepo) Get(ctx context.Context, id string) (model.Registration, error) {
	doc, err := r.store.GetByID(ctx, RegistrationsCollection, id)
	if err != nil {
		return model.Registration{}, err
	}
	var reg model.Registration
	if err := decode(doc, &reg); err != nil {
		return model.Registration{}, err
	}
	return reg, nil
}

func (r *RegistrationRepo) SetReceiptURL(ctx context.Context, id, url string) error {
	return r.store.Update(ctx, RegistrationsCollection, id, docstore.Data{"receiptUrl": url})
}

// Page lists registrations newest first.
func (r *RegistrationRepo) Page(ctx context.Context, size int, cursor string) (Page[model.Registration], error) {
	p, err := r.store.GetPage(ctx, RegistrationsCollection, docstore.PageQuery{Size: size, Cursor: cursor})
	if err != nil {
		return Page[model.Registration]{}, err
	}
	return decodePage[model.Registration](p, func(id string, err error) {
		r.log.WithError(err).WithField("id", id).Warn("skipping registration")
	}), nil
}
