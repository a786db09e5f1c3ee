package docstore

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMySQL(db), mock
}

var docCols = []string{"id", "data", "revision", "created_at", "updated_at"}

func TestMySQLAdd(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents (collection, id, data) VALUES (?,?,?)")).
		WithArgs("committees", sqlmock.AnyArg(), `{"name":"GA"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.Add(context.Background(), "committees", Data{"name": "GA"})
	require.NoError(t, err)
	assert.Len(t, id, 36)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGetByID(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(selectCols+" WHERE collection=? AND id=? LIMIT 1")).
		WithArgs("committees", "c1").
		WillReturnRows(sqlmock.NewRows(docCols).AddRow("c1", []byte(`{"name":"GA"}`), 3, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(selectCols+" WHERE collection=? AND id=? LIMIT 1")).
		WithArgs("committees", "nope").
		WillReturnError(sql.ErrNoRows)

	doc, err := s.GetByID(context.Background(), "committees", "c1")
	require.NoError(t, err)
	assert.Equal(t, "GA", doc.Data["name"])
	assert.Equal(t, uint64(3), doc.Revision)

	_, err = s.GetByID(context.Background(), "committees", "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGetAllWithFilter(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(selectCols+" WHERE collection=? AND JSON_EXTRACT(data, '$.isAdmin') = CAST(? AS JSON) ORDER BY created_at, id")).
		WithArgs("users", "true").
		WillReturnRows(sqlmock.NewRows(docCols).
			AddRow("u1", []byte(`{"isAdmin":true}`), 1, now, now).
			AddRow("u2", []byte(`{"isAdmin":true}`), 1, now, now))

	docs, err := s.GetAll(context.Background(), "users", Filter{Field: "isAdmin", Value: true})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUpdateIsShallow(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET data=JSON_SET(data, '$.seats', CAST(? AS JSON), '$.seatsList', CAST(? AS JSON)), revision=revision+1 WHERE collection=? AND id=?")).
		WithArgs("2", `[{"available":false,"name":"A"}]`, "committees", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 0))

	patch := Data{"seatsList": []map[string]any{{"name": "A", "available": false}}, "seats": 2}
	require.NoError(t, s.Update(context.Background(), "committees", "c1", patch))

	err := s.Update(context.Background(), "committees", "gone", Data{"seats": 1})
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUpdateIfRevision(t *testing.T) {
	s, mock := newMock(t)
	update := regexp.QuoteMeta("revision=revision+1 WHERE collection=? AND id=? AND revision=?")
	lookup := regexp.QuoteMeta("SELECT revision FROM documents WHERE collection=? AND id=?")

	mock.ExpectExec(update).WithArgs("1", "committees", "c1", uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(update).WithArgs("1", "committees", "c1", uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lookup).WithArgs("committees", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"revision"}).AddRow(5))

	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lookup).WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	require.NoError(t, s.UpdateIfRevision(ctx, "committees", "c1", 4, Data{"seats": 1}))
	assert.True(t, errors.Is(s.UpdateIfRevision(ctx, "committees", "c1", 4, Data{"seats": 1}), ErrStaleRevision))
	assert.True(t, errors.Is(s.UpdateIfRevision(ctx, "committees", "c9", 4, Data{"seats": 1}), ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLSetUpserts(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE data=VALUES(data), revision=revision+1")).
		WithArgs("config", "registration", `{"rate":180}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "config", "registration", Data{"rate": 180}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGetPage(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	rows := sqlmock.NewRows(docCols)
	for _, id := range []string{"c", "b", "a"} {
		rows.AddRow(id, []byte(`{"createdAt":"2025-01-0`+map[string]string{"c": "3", "b": "2", "a": "1"}[id]+`T00:00:00Z"}`), 1, now, now)
	}
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY JSON_EXTRACT(data, '$.createdAt') DESC, id DESC LIMIT ?")).
		WithArgs("firebase_request_logs", 3).
		WillReturnRows(rows)

	page, err := s.GetPage(context.Background(), "firebase_request_logs", PageQuery{Size: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.Cursor)

	c, err := decodeCursor(page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "b", c.ID)
	assert.Equal(t, `"2025-01-02T00:00:00Z"`, string(c.Value))

	mock.ExpectQuery(regexp.QuoteMeta("AND (JSON_EXTRACT(data, '$.createdAt') < CAST(? AS JSON) OR (JSON_EXTRACT(data, '$.createdAt') = CAST(? AS JSON) AND id < ?))")).
		WithArgs("firebase_request_logs", `"2025-01-02T00:00:00Z"`, `"2025-01-02T00:00:00Z"`, "b", 3).
		WillReturnRows(sqlmock.NewRows(docCols).AddRow("a", []byte(`{"createdAt":"2025-01-01T00:00:00Z"}`), 1, now, now))

	next, err := s.GetPage(context.Background(), "firebase_request_logs", PageQuery{Size: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
	assert.False(t, next.HasMore)
	require.NoError(t, mock.ExpectationsWereMet())
}
