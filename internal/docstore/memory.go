package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memDoc struct {
	data      Data
	revision  uint64
	createdAt time.Time
	updatedAt time.Time
}

// Memory is an in-process Store. Used for local development and tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memDoc
	Now         func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: map[string]map[string]*memDoc{},
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) coll(name string) map[string]*memDoc {
	c, ok := m.collections[name]
	if !ok {
		c = map[string]*memDoc{}
		m.collections[name] = c
	}
	return c
}

func (m *Memory) Add(_ context.Context, collection string, data Data) (string, error) {
	d, err := clone(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := m.Now()
	m.mu.Lock()
	m.coll(collection)[id] = &memDoc{data: d, revision: 1, createdAt: now, updatedAt: now}
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) GetAll(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	for _, f := range filters {
		if err := checkField(f.Field); err != nil {
			return nil, err
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Document{}
	for id, d := range m.collections[collection] {
		if !matchAll(d.data, filters) {
			continue
		}
		doc, err := d.export(id)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetByID(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d.export(id)
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch Data) error {
	return m.update(collection, id, nil, patch)
}

func (m *Memory) UpdateIfRevision(ctx context.Context, collection, id string, revision uint64, patch Data) error {
	return m.update(collection, id, &revision, patch)
}

func (m *Memory) update(collection, id string, revision *uint64, patch Data) error {
	p, err := clone(patch)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	if revision != nil && d.revision != *revision {
		return ErrStaleRevision
	}
	for k, v := range p {
		d.data[k] = v
	}
	d.revision++
	d.updatedAt = m.Now()
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	delete(m.collections[collection], id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Set(_ context.Context, collection, id string, data Data) error {
	d, err := clone(data)
	if err != nil {
		return err
	}
	now := m.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	if old, ok := c[id]; ok {
		old.data = d
		old.revision++
		old.updatedAt = now
		return nil
	}
	c[id] = &memDoc{data: d, revision: 1, createdAt: now, updatedAt: now}
	return nil
}

func (m *Memory) GetPage(_ context.Context, collection string, q PageQuery) (Page, error) {
	q, err := q.normalize()
	if err != nil {
		return Page{}, err
	}
	var after *cursor
	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil {
			return Page{}, err
		}
		after = &c
	}

	var filters []Filter
	if q.Filter != nil {
		filters = append(filters, *q.Filter)
	}

	m.mu.RLock()
	type row struct {
		id  string
		key any
		d   *memDoc
	}
	rows := []row{}
	for id, d := range m.collections[collection] {
		if matchAll(d.data, filters) {
			rows = append(rows, row{id: id, key: d.data[q.OrderField], d: d})
		}
	}
	m.mu.RUnlock()

	less := func(a, b row) bool {
		c := compareValues(a.key, b.key)
		if c == 0 {
			c = strings.Compare(a.id, b.id)
		}
		if q.Direction == Desc {
			return c > 0
		}
		return c < 0
	}
	sort.Slice(rows, func(i, j int) bool { return less(rows[i], rows[j]) })

	start := 0
	if after != nil {
		pivot := row{id: after.ID, key: after.value()}
		for start < len(rows) && !less(pivot, rows[start]) {
			start++
		}
	}
	rows = rows[start:]

	page := Page{Items: []Document{}}
	if len(rows) > q.Size {
		page.HasMore = true
		rows = rows[:q.Size]
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range rows {
		doc, err := r.d.export(r.id)
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, doc)
	}
	if page.HasMore {
		last := rows[len(rows)-1]
		if page.Cursor, err = encodeCursor(last.key, last.id); err != nil {
			return Page{}, err
		}
	}
	return page, nil
}

func (d *memDoc) export(id string) (Document, error) {
	data, err := clone(d.data)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: data, Revision: d.revision, CreatedAt: d.createdAt, UpdatedAt: d.updatedAt}, nil
}

func matchAll(d Data, filters []Filter) bool {
	for _, f := range filters {
		if compareValues(d[f.Field], normalizeValue(f.Value)) != 0 {
			return false
		}
	}
	return true
}

// normalizeValue brings a caller value into the shape JSON decoding yields,
// so an int filter matches a stored float64.
func normalizeValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// compareValues orders null < bool < number < string < everything else.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return strings.Compare(string(ja), string(jb))
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}
