package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Schema creates the table backing MySQL. Applied by database.Migrate.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
  collection VARCHAR(64) NOT NULL,
  id VARCHAR(64) NOT NULL,
  data JSON NOT NULL,
  revision BIGINT UNSIGNED NOT NULL DEFAULT 1,
  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
  PRIMARY KEY (collection, id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const selectCols = "SELECT id, data, revision, created_at, updated_at FROM documents"

// MySQL stores documents as JSON rows of a single table.
type MySQL struct{ db *sql.DB }

var _ Store = (*MySQL)(nil)

func NewMySQL(db *sql.DB) *MySQL { return &MySQL{db: db} }

func (s *MySQL) Add(ctx context.Context, collection string, data Data) (string, error) {
	raw, err := marshalData(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data) VALUES (?,?,?)",
		collection, id, raw)
	if err != nil {
		return "", errors.Wrapf(err, "add to %s", collection)
	}
	return id, nil
}

func (s *MySQL) GetAll(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	where, args, err := filterClause(collection, filters)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, selectCols+where+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", collection)
	}
	defer rows.Close()
	return scanDocs(rows)
}

func (s *MySQL) GetByID(ctx context.Context, collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, selectCols+" WHERE collection=? AND id=? LIMIT 1", collection, id)
	doc, err := scanDoc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, errors.Wrapf(err, "get %s/%s", collection, id)
	}
	return doc, nil
}

func (s *MySQL) Update(ctx context.Context, collection, id string, patch Data) error {
	set, args, err := patchClause(patch)
	if err != nil {
		return err
	}
	args = append(args, collection, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET "+set+", revision=revision+1 WHERE collection=? AND id=?", args...)
	if err != nil {
		return errors.Wrapf(err, "update %s/%s", collection, id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQL) UpdateIfRevision(ctx context.Context, collection, id string, revision uint64, patch Data) error {
	set, args, err := patchClause(patch)
	if err != nil {
		return err
	}
	args = append(args, collection, id, revision)
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET "+set+", revision=revision+1 WHERE collection=? AND id=? AND revision=?", args...)
	if err != nil {
		return errors.Wrapf(err, "update %s/%s", collection, id)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var current uint64
	err = s.db.QueryRowContext(ctx,
		"SELECT revision FROM documents WHERE collection=? AND id=?", collection, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "update %s/%s", collection, id)
	}
	return ErrStaleRevision
}

func (s *MySQL) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection=? AND id=?", collection, id)
	return errors.Wrapf(err, "delete %s/%s", collection, id)
}

func (s *MySQL) Set(ctx context.Context, collection, id string, data Data) error {
	raw, err := marshalData(data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data) VALUES (?,?,?) "+
			"ON DUPLICATE KEY UPDATE data=VALUES(data), revision=revision+1",
		collection, id, raw)
	return errors.Wrapf(err, "set %s/%s", collection, id)
}

func (s *MySQL) GetPage(ctx context.Context, collection string, q PageQuery) (Page, error) {
	q, err := q.normalize()
	if err != nil {
		return Page{}, err
	}
	var filters []Filter
	if q.Filter != nil {
		filters = append(filters, *q.Filter)
	}
	where, args, err := filterClause(collection, filters)
	if err != nil {
		return Page{}, err
	}

	key := fmt.Sprintf("JSON_EXTRACT(data, '$.%s')", q.OrderField)
	op, dir := "<", "DESC"
	if q.Direction == Asc {
		op, dir = ">", "ASC"
	}
	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil {
			return Page{}, err
		}
		where += fmt.Sprintf(" AND (%[1]s %[2]s CAST(? AS JSON) OR (%[1]s = CAST(? AS JSON) AND id %[2]s ?))", key, op)
		args = append(args, string(c.Value), string(c.Value), c.ID)
	}
	query := fmt.Sprintf("%s%s ORDER BY %s %s, id %s LIMIT ?", selectCols, where, key, dir, dir)
	args = append(args, q.Size+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, errors.Wrapf(err, "page %s", collection)
	}
	defer rows.Close()
	docs, err := scanDocs(rows)
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: docs}
	if len(docs) > q.Size {
		page.HasMore = true
		page.Items = docs[:q.Size]
		last := page.Items[q.Size-1]
		if page.Cursor, err = encodeCursor(last.Data[q.OrderField], last.ID); err != nil {
			return Page{}, err
		}
	}
	return page, nil
}

func filterClause(collection string, filters []Filter) (string, []any, error) {
	var b strings.Builder
	b.WriteString(" WHERE collection=?")
	args := []any{collection}
	for _, f := range filters {
		if err := checkField(f.Field); err != nil {
			return "", nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, errors.Wrap(err, "encode filter")
		}
		fmt.Fprintf(&b, " AND JSON_EXTRACT(data, '$.%s') = CAST(? AS JSON)", f.Field)
		args = append(args, string(v))
	}
	return b.String(), args, nil
}

// patchClause builds a shallow JSON_SET over the top-level keys of patch.
// Keys are sorted so the statement text is stable.
func patchClause(patch Data) (string, []any, error) {
	if len(patch) == 0 {
		return "data=data", nil, nil
	}
	keys := make([]string, 0, len(patch))
	for k := range patch {
		if err := checkField(k); err != nil {
			return "", nil, err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("data=JSON_SET(data")
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(patch[k])
		if err != nil {
			return "", nil, errors.Wrapf(err, "encode field %s", k)
		}
		fmt.Fprintf(&b, ", '$.%s', CAST(? AS JSON)", k)
		args = append(args, string(v))
	}
	b.WriteString(")")
	return b.String(), args, nil
}

func marshalData(d Data) (string, error) {
	if d == nil {
		d = Data{}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", errors.Wrap(err, "encode document")
	}
	return string(raw), nil
}

type scanner interface{ Scan(dest ...any) error }

func scanDoc(sc scanner) (Document, error) {
	var (
		doc  Document
		raw  []byte
		c, u time.Time
	)
	if err := sc.Scan(&doc.ID, &raw, &doc.Revision, &c, &u); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return Document{}, errors.Wrapf(err, "decode document %s", doc.ID)
	}
	doc.CreatedAt, doc.UpdatedAt = c.UTC(), u.UTC()
	return doc, nil
}

func scanDocs(rows *sql.Rows) ([]Document, error) {
	out := []Document{}
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
