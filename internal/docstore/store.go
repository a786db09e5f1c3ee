// Package docstore is a schemaless document store: named collections of
// JSON documents keyed by string ids, with equality filters and cursor
// pagination. Every document carries a revision counter bumped on each write
// so callers can reject writes made from a stale snapshot.
package docstore

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a document id does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrStaleRevision is returned by UpdateIfRevision when the stored
	// document changed after the caller read it.
	ErrStaleRevision = errors.New("document changed since it was read, reload and retry")
	// ErrInvalidCursor is returned for cursors this store did not issue.
	ErrInvalidCursor = errors.New("invalid page cursor")
	// ErrInvalidField is returned for filter or order fields that are not
	// plain identifiers.
	ErrInvalidField = errors.New("invalid field name")
)

// DefaultPageSize and DefaultOrderField apply when a PageQuery leaves them unset.
const (
	DefaultPageSize   = 9
	DefaultOrderField = "createdAt"
)

// Data is the payload of a document.
type Data map[string]any

// Document is a stored document with its bookkeeping fields.
type Document struct {
	ID        string
	Data      Data
	Revision  uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter is an equality constraint on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Direction of a paginated ordering.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// PageQuery selects one page of a collection.
type PageQuery struct {
	Size       int
	Cursor     string
	OrderField string
	Direction  Direction
	Filter     *Filter
}

// Page is one page of results. Cursor is empty when HasMore is false.
type Page struct {
	Items   []Document
	Cursor  string
	HasMore bool
}

// Store is the contract every backend implements.
type Store interface {
	Add(ctx context.Context, collection string, data Data) (string, error)
	GetAll(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	GetByID(ctx context.Context, collection, id string) (Document, error)
	Update(ctx context.Context, collection, id string, patch Data) error
	UpdateIfRevision(ctx context.Context, collection, id string, revision uint64, patch Data) error
	Delete(ctx context.Context, collection, id string) error
	Set(ctx context.Context, collection, id string, data Data) error
	GetPage(ctx context.Context, collection string, q PageQuery) (Page, error)
}

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkField(f string) error {
	if !fieldRe.MatchString(f) {
		return errors.Wrapf(ErrInvalidField, "%q", f)
	}
	return nil
}

// normalize fills defaults and validates a page query.
func (q PageQuery) normalize() (PageQuery, error) {
	if q.Size <= 0 {
		q.Size = DefaultPageSize
	}
	if q.OrderField == "" {
		q.OrderField = DefaultOrderField
	}
	if q.Direction != Asc {
		q.Direction = Desc
	}
	if err := checkField(q.OrderField); err != nil {
		return q, err
	}
	if q.Filter != nil {
		if err := checkField(q.Filter.Field); err != nil {
			return q, err
		}
	}
	return q, nil
}

// Encode converts a typed record into document data through its JSON form.
// The "id" and "revision" keys are dropped since they are stored out of band.
func Encode(v any) (Data, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	delete(d, "id")
	delete(d, "revision")
	return d, nil
}

// Decode maps a document onto a typed record. The document id and revision
// are exposed as "id" and "revision" so records can carry them.
func Decode(doc Document, v any) error {
	m := make(map[string]any, len(doc.Data)+2)
	for k, val := range doc.Data {
		m[k] = val
	}
	m["id"] = doc.ID
	m["revision"] = doc.Revision
	raw, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "decode document")
	}
	return errors.Wrapf(json.Unmarshal(raw, v), "decode document %s", doc.ID)
}

// clone deep-copies data through JSON so callers never share maps with the store.
func clone(d Data) (Data, error) {
	if d == nil {
		return Data{}, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(err, "copy document")
	}
	var out Data
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "copy document")
	}
	return out, nil
}
