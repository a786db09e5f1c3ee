package telemetry

import (
	"context"

	"github.com/iliyamo/munreg/internal/docstore"
)

// Store tracks every call made to the wrapped document store.
type Store struct {
	next    docstore.Store
	tracker *Tracker
}

var _ docstore.Store = (*Store)(nil)

// WrapStore decorates next. The tracker's sink should be next itself, not
// the returned Store.
func WrapStore(next docstore.Store, tracker *Tracker) *Store {
	return &Store{next: next, tracker: tracker}
}

func (s *Store) opts(op string, meta map[string]any) Options {
	return Options{Service: ServiceData, Operation: op, Metadata: meta}
}

func (s *Store) Add(ctx context.Context, collection string, data docstore.Data) (string, error) {
	return Track(ctx, s.tracker, s.opts("add", map[string]any{"collectionName": collection}),
		func(ctx context.Context) (string, error) { return s.next.Add(ctx, collection, data) })
}

func (s *Store) GetAll(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	meta := map[string]any{"collectionName": collection, "constraintsCount": len(filters)}
	return Track(ctx, s.tracker, s.opts("getAll", meta),
		func(ctx context.Context) ([]docstore.Document, error) {
			return s.next.GetAll(ctx, collection, filters...)
		})
}

func (s *Store) GetByID(ctx context.Context, collection, id string) (docstore.Document, error) {
	meta := map[string]any{"collectionName": collection, "id": id}
	return Track(ctx, s.tracker, s.opts("getById", meta),
		func(ctx context.Context) (docstore.Document, error) { return s.next.GetByID(ctx, collection, id) })
}

func (s *Store) Update(ctx context.Context, collection, id string, patch docstore.Data) error {
	meta := map[string]any{"collectionName": collection, "id": id}
	return s.tracker.Do(ctx, s.opts("update", meta),
		func(ctx context.Context) error { return s.next.Update(ctx, collection, id, patch) })
}

func (s *Store) UpdateIfRevision(ctx context.Context, collection, id string, revision uint64, patch docstore.Data) error {
	meta := map[string]any{"collectionName": collection, "id": id, "revision": revision}
	return s.tracker.Do(ctx, s.opts("updateIfRevision", meta),
		func(ctx context.Context) error {
			return s.next.UpdateIfRevision(ctx, collection, id, revision, patch)
		})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	meta := map[string]any{"collectionName": collection, "id": id}
	return s.tracker.Do(ctx, s.opts("delete", meta),
		func(ctx context.Context) error { return s.next.Delete(ctx, collection, id) })
}

func (s *Store) Set(ctx context.Context, collection, id string, data docstore.Data) error {
	meta := map[string]any{"collectionName": collection, "id": id}
	return s.tracker.Do(ctx, s.opts("set", meta),
		func(ctx context.Context) error { return s.next.Set(ctx, collection, id, data) })
}

func (s *Store) GetPage(ctx context.Context, collection string, q docstore.PageQuery) (docstore.Page, error) {
	meta := map[string]any{
		"collectionName": collection,
		"pageSize":       q.Size,
		"hasCursor":      q.Cursor != "",
		"orderByField":   q.OrderField,
		"orderDirection": string(q.Direction),
	}
	op := "getPage"
	if q.Filter != nil {
		op = "getPageWithFilter"
		meta["filterField"] = q.Filter.Field
	}
	return Track(ctx, s.tracker, s.opts(op, meta),
		func(ctx context.Context) (docstore.Page, error) { return s.next.GetPage(ctx, collection, q) })
}
