package repository

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/telemetry"
)

// AssignmentRepo journals seat assignments.
type AssignmentRepo struct {
	store docstore.Store
	log   *logrus.Entry
}

func NewAssignmentRepo(store docstore.Store) *AssignmentRepo {
	return &AssignmentRepo{store: store, log: logrus.WithField("component", "assignments")}
}

// Record appends a journal entry and returns its id.
func (r *AssignmentRepo) Record(ctx context.Context, a model.Assignment) (string, error) {
	a.CreatedAt = stamp(a.CreatedAt)
	data, err := docstore.Encode(a)
	if err != nil {
		return "", err
	}
	return r.store.Add(ctx, AssignmentsCollection, data)
}

// Page lists journal entries newest first, optionally only one status.
func (r *AssignmentRepo) Page(ctx context.Context, size int, cursor, status string) (Page[model.Assignment], error) {
	q := docstore.PageQuery{Size: size, Cursor: cursor}
	if status != "" {
		q.Filter = &docstore.Filter{Field: "status", Value: status}
	}
	p, err := r.store.GetPage(ctx, AssignmentsCollection, q)
	if err != nil {
		return Page[model.Assignment]{}, err
	}
	return decodePage[model.Assignment](p, func(id string, err error) {
		r.log.WithError(err).WithField("id", id).Warn("skipping assignment")
	}), nil
}

// RequestLogRepo reads the telemetry collection.
type RequestLogRepo struct{ store docstore.Store }

func NewRequestLogRepo(store docstore.Store) *RequestLogRepo { return &RequestLogRepo{store: store} }

// Page lists request logs newest first, optionally filtered by status.
func (r *RequestLogRepo) Page(ctx context.Context, size int, cursor, status string) (Page[model.RequestLog], error) {
	q := docstore.PageQuery{Size: size, Cursor: cursor}
	if status != "" {
		q.Filter = &docstore.Filter{Field: "status", Value: status}
	}
	p, err := r.store.GetPage(ctx, telemetry.Collection, q)
	if err != nil {
		return Page[model.RequestLog]{}, err
	}
	return decodePage[model.RequestLog](p, nil), nil
}
