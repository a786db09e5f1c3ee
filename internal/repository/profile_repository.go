package repository

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/model"
)

// ProfileRepo reads and writes the `users` collection. Profile ids are the
// account ids of the credential table.
type ProfileRepo struct {
	store docstore.Store
	log   *logrus.Entry
}

func NewProfileRepo(store docstore.Store) *ProfileRepo {
	return &ProfileRepo{store: store, log: logrus.WithField("component", "profiles")}
}

// Put creates or replaces the profile p.ID.
func (r *ProfileRepo) Put(ctx context.Context, p model.Profile) error {
	p.CreatedAt = stamp(p.CreatedAt)
	data, err := docstore.Encode(p)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, UsersCollection, p.ID, data)
}

func (r *ProfileRepo) Get(ctx context.Context, id string) (model.Profile, error) {
	doc, err := r.store.GetByID(ctx, UsersCollection, id)
	if err != nil {
		return model.Profile{}, err
	}
	var p model.Profile
	if err := decode(doc, &p); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

// List returns every valid profile.
func (r *ProfileRepo) List(ctx context.Context) ([]model.Profile, error) {
	docs, err := r.store.GetAll(ctx, UsersCollection)
	if err != nil {
		return nil, err
	}
	return decodeAll[model.Profile](docs, func(id string, err error) {
		r.log.WithError(err).WithField("id", id).Warn("skipping profile")
	}), nil
}

func (r *ProfileRepo) SetAdmin(ctx context.Context, id string, admin bool) error {
	return r.store.Update(ctx, UsersCollection, id, docstore.Data{"isAdmin": admin})
}

func (r *ProfileRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, UsersCollection, id)
}
