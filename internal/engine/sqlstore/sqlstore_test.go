package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmap/internal/engine"
)

var peopleSpec = engine.CollectionSpec{
	Name:   "people",
	Fields: []engine.FieldSpec{{Name: "name"}, {Name: "age"}},
}

func setupMock(t *testing.T) (engine.Collection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	eng := New(db, Postgres, "test", nil)
	require.NoError(t, eng.Connect(context.Background()))
	coll, err := eng.Collection(peopleSpec)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "people"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	return coll, mock
}

func bodyOf(t *testing.T, rec engine.Record) []byte {
	t.Helper()
	body, err := engine.MarshalRecord(rec)
	require.NoError(t, err)
	return body
}

func TestCreate(t *testing.T) {
	coll, mock := setupMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "people" (id, body) VALUES ($1, $2)`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec, err := coll.Create(context.Background(), engine.Record{"name": "Ada"}, nil)
	require.NoError(t, err)

	id, ok := rec.ID().(string)
	require.True(t, ok)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, "Ada", rec["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateKey(t *testing.T) {
	coll, mock := setupMock(t)
	mock.ExpectExec(`INSERT INTO "people"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (id) already exists"})

	_, err := coll.Create(context.Background(), engine.Record{engine.IDField: "a", "name": "Ada"}, nil)
	assert.ErrorIs(t, err, engine.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFind(t *testing.T) {
	coll, mock := setupMock(t)
	rows := sqlmock.NewRows([]string{"body"}).
		AddRow(bodyOf(t, engine.Record{engine.IDField: "a", "name": "Ada", "age": 36})).
		AddRow(bodyOf(t, engine.Record{engine.IDField: "b", "name": "Bo", "age": 12}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM "people" ORDER BY seq`)).WillReturnRows(rows)

	found, err := coll.Find(context.Background(), engine.Filter{"age": map[string]any{"$gt": 18}}, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Ada", found[0]["name"])
	assert.Equal(t, 36, found[0]["age"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID(t *testing.T) {
	coll, mock := setupMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM "people" WHERE id = $1`)).
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(bodyOf(t, engine.Record{engine.IDField: "a", "name": "Ada"})))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM "people" WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	rec, err := coll.FindByID(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec["name"])

	_, err = coll.FindByID(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, engine.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_Missing(t *testing.T) {
	coll, mock := setupMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "people" SET body = $1 WHERE id = $2`)).
		WithArgs(sqlmock.AnyArg(), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := coll.Save(context.Background(), engine.Record{engine.IDField: "gone", "name": "x"}, nil)
	assert.ErrorIs(t, err, engine.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMany(t *testing.T) {
	coll, mock := setupMock(t)
	rows := sqlmock.NewRows([]string{"body"}).
		AddRow(bodyOf(t, engine.Record{engine.IDField: "a", "name": "Ada"})).
		AddRow(bodyOf(t, engine.Record{engine.IDField: "b", "name": "Bo"}))
	mock.ExpectQuery(`SELECT body FROM "people"`).WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "people" WHERE id IN ($1, $2)`)).
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(0, 2))

	res, err := coll.DeleteMany(context.Background(), engine.Filter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.DeletedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisconnectClosesDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	eng := New(db, SQLite, "test", nil)
	require.NoError(t, eng.Connect(context.Background()))

	mock.ExpectClose()
	require.NoError(t, eng.Disconnect(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialects(t *testing.T) {
	d, err := DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, `SELECT body FROM "notes" WHERE id = ?`, d.getSQL("notes"))
	assert.Equal(t, `DELETE FROM "notes" WHERE id IN (?, ?)`, d.deleteSQL("notes", 2))
	assert.Equal(t, `DROP TABLE IF EXISTS "we""ird"`, d.dropSQL(`we"ird`))

	d, err = DialectFor("pq")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Driver)
	assert.Equal(t, `INSERT INTO "notes" (id, body) VALUES ($1, $2)`, d.insertSQL("notes"))

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestConvertDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"pgx unique", &pgconn.PgError{Code: "23505"}, engine.ErrDuplicateKey},
		{"pq unique", &pq.Error{Code: "23505"}, engine.ErrDuplicateKey},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, engine.ErrDuplicateKey},
		{"sqlite primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, engine.ErrDuplicateKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ConvertDBError(tt.err), tt.want)
		})
	}

	assert.Nil(t, ConvertDBError(nil))
	assert.ErrorIs(t, ConvertDBError(sql.ErrNoRows), engine.ErrNotFound)

	other := errors.New("connection reset")
	assert.Same(t, other, ConvertDBError(other))
}
