// Package repository maps stored documents and rows onto typed records.
// Document reads go through a validating decode step: a document missing a
// required field is rejected instead of being trusted.
package repository

import (
	"github.com/pkg/errors"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/validation"
)

// ErrInvalidDocument is returned when a stored document fails validation.
var ErrInvalidDocument = errors.New("invalid document")

// ErrNotFound is the document store's not-found error.
var ErrNotFound = docstore.ErrNotFound

// ErrEmailExists is returned when an account email is taken.
var ErrEmailExists = errors.New("email already exists")

// Page is one typed page of a collection.
type Page[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"hasMore"`
}

// decode maps doc onto v and validates it.
func decode(doc docstore.Document, v any) error {
	if err := docstore.Decode(doc, v); err != nil {
		return errors.Wrap(ErrInvalidDocument, err.Error())
	}
	if err := validation.Struct(v); err != nil {
		return errors.Wrapf(ErrInvalidDocument, "%s: %v", doc.ID, err)
	}
	return nil
}

// decodeAll decodes docs, skipping and reporting the invalid ones.
func decodeAll[T any](docs []docstore.Document, skip func(id string, err error)) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := decode(d, &v); err != nil {
			if skip != nil {
				skip(d.ID, err)
			}
			continue
		}
		out = append(out, v)
	}
	return out
}

func decodePage[T any](p docstore.Page, skip func(id string, err error)) Page[T] {
	return Page[T]{Items: decodeAll[T](p.Items, skip), Cursor: p.Cursor, HasMore: p.HasMore}
}
