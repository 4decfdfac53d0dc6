package sqlgraph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/syssam/veloxgraph"
	"github.com/syssam/veloxgraph/dialect"
	"github.com/syssam/veloxgraph/dialect/sql"
	"github.com/syssam/veloxgraph/dialect/sql/sqlgraph"
	"github.com/syssam/veloxgraph/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockDriver(t *testing.T, name string) (*sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sql.OpenDB(name, db), mock
}

func insertion(t *testing.T, typ string, objs ...*entity.Object) *sqlgraph.TableInsertion {
	t.Helper()
	ty := testSchema(t).Type(typ)
	return &sqlgraph.TableInsertion{Table: ty.Table, Type: ty, Objects: objs, IsInput: make([]bool, len(objs))}
}

func TestSQLInsert_Postgres(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	mock.ExpectQuery(`INSERT INTO "persons" ("name") VALUES ($1), ($2) RETURNING "id"`).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectQuery(`INSERT INTO "persons" ("data", "name") VALUES ($1, $2) RETURNING "id"`).
		WithArgs(`{"x":1}`, "c").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	ins := insertion(t, "Person", person("a"), person("c").Set("data", map[string]any{"x": int64(1)}), person("b"))
	ids, err := sqlgraph.SQLInsert(dialect.Postgres, drv)(context.Background(), ins)
	require.NoError(t, err)
	assert.Equal(t, []entity.ID{{int64(1)}, {int64(3)}, {int64(2)}}, ids, "identifiers follow the input order")
}

func TestSQLInsert_MySQL(t *testing.T) {
	drv, mock := mockDriver(t, dialect.MySQL)
	mock.ExpectExec("INSERT INTO `animals` (`name`, `owner_id`) VALUES (?, ?), (?, ?)").
		WithArgs("x", 1, "y", 1).
		WillReturnResult(sqlmock.NewResult(5, 2))

	pet := func(name string) *entity.Object {
		return entity.New(map[string]any{"name": name, "owner_id": 1})
	}
	ids, err := sqlgraph.SQLInsert(dialect.MySQL, drv)(context.Background(), insertion(t, "Animal", pet("x"), pet("y")))
	require.NoError(t, err)
	assert.Equal(t, []entity.ID{{int64(5)}, {int64(6)}}, ids)
}

func TestSQLInsert_Defaults(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	for i := 1; i <= 2; i++ {
		mock.ExpectQuery(`INSERT INTO "movies" DEFAULT VALUES RETURNING "id"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(i)))
	}
	ids, err := sqlgraph.SQLInsert(dialect.SQLite, drv)(context.Background(), insertion(t, "Movie", entity.New(nil), entity.New(nil)))
	require.NoError(t, err)
	assert.Equal(t, []entity.ID{{int64(1)}, {int64(2)}}, ids)
}

func TestSQLInsert_ProvidedIDs(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	mock.ExpectExec(`INSERT INTO "movies" ("id", "name") VALUES ($1, $2)`).
		WithArgs(7, "Alien").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ids, err := sqlgraph.SQLInsert(dialect.Postgres, drv)(context.Background(), insertion(t, "Movie", entity.New(map[string]any{"id": 7, "name": "Alien"})))
	require.NoError(t, err)
	assert.Equal(t, []entity.ID{{7}}, ids)
}

func TestSQLInsert_JoinTable(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	mock.ExpectExec(`INSERT INTO "persons_movies" ("movie_id", "person_id", "role") VALUES ($1, $2, $3)`).
		WithArgs(2, 1, "Ripley").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ids, err := sqlgraph.SQLInsert(dialect.Postgres, drv)(context.Background(), &sqlgraph.TableInsertion{
		Table:       "persons_movies",
		IsJoinTable: true,
		Objects:     []*entity.Object{entity.New(map[string]any{"person_id": 1, "movie_id": 2, "role": "Ripley"})},
		IsInput:     []bool{false},
	})
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestSQLInsert_Errors(t *testing.T) {
	t.Run("returned_rows", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectQuery(`INSERT INTO "persons" ("name") VALUES ($1), ($2) RETURNING "id"`).
			WithArgs("a", "b").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		_, err := sqlgraph.SQLInsert(dialect.Postgres, drv)(context.Background(), insertion(t, "Person", person("a"), person("b")))
		require.ErrorContains(t, err, "returned 1 rows for 2 values")
	})
	t.Run("exec", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.MySQL)
		mock.ExpectExec("INSERT INTO `persons` (`name`) VALUES (?)").
			WithArgs("a").
			WillReturnError(errors.New("Error 1062: Duplicate entry 'a' for key 'name'"))
		_, err := sqlgraph.SQLInsert(dialect.MySQL, drv)(context.Background(), insertion(t, "Person", person("a")))
		require.Error(t, err)
		var cerr veloxgraph.ConstraintError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, veloxgraph.ConstraintUnique, cerr.Kind)
		assert.Equal(t, "persons", cerr.Table)
	})
}

func TestInsertGraph(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "persons" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectQuery(`INSERT INTO "animals" ("name", "owner_id") VALUES ($1, $2) RETURNING "id"`).
			WithArgs("x", int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
		mock.ExpectCommit()

		a := person("a").AddMany("pets", entity.New(map[string]any{"name": "x"}))
		g, err := sqlgraph.BuildGraph(testSchema(t).Type("Person"), []*entity.Object{a})
		require.NoError(t, err)
		out, err := sqlgraph.InsertGraph(context.Background(), drv, g)
		require.NoError(t, err)
		require.Equal(t, []*entity.Object{a}, out)
		assert.Equal(t, int64(1), a.Get("id"))
		assert.Equal(t, int64(10), a.Many["pets"][0].Get("id"))
	})
	t.Run("tables_in_order", func(t *testing.T) {
		// persons and movies share a batch and run one after the other on the transaction.
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "persons" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectQuery(`INSERT INTO "movies" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("Alien").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
		mock.ExpectExec(`INSERT INTO "persons_movies" ("movie_id", "person_id") VALUES ($1, $2)`).
			WithArgs(int64(7), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		a := person("a").AddMany("movies", entity.New(map[string]any{"name": "Alien"}))
		g, err := sqlgraph.BuildGraph(testSchema(t).Type("Person"), []*entity.Object{a})
		require.NoError(t, err)
		_, err = sqlgraph.InsertGraph(context.Background(), drv, g)
		require.NoError(t, err)
		assert.Equal(t, int64(7), a.Many["movies"][0].Get("id"))
	})
	t.Run("rollback", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "persons" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("a").
			WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "persons_name_key"`))
		mock.ExpectRollback()

		g, err := sqlgraph.BuildGraph(testSchema(t).Type("Person"), []*entity.Object{person("a")})
		require.NoError(t, err)
		_, err = sqlgraph.InsertGraph(context.Background(), drv, g)
		require.Error(t, err)
		assert.True(t, veloxgraph.IsMutationError(err))
		assert.True(t, veloxgraph.IsConstraintError(err))
		assert.False(t, veloxgraph.IsRollbackError(err))
	})
	t.Run("rollback_failed", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "persons" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("a").
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback().WillReturnError(errors.New("connection closed"))

		g, err := sqlgraph.BuildGraph(testSchema(t).Type("Person"), []*entity.Object{person("a")})
		require.NoError(t, err)
		_, err = sqlgraph.InsertGraph(context.Background(), drv, g)
		require.True(t, veloxgraph.IsRollbackError(err))
		assert.ErrorContains(t, err, "connection closed")
	})
	t.Run("begin", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
		g, err := sqlgraph.BuildGraph(testSchema(t).Type("Person"), []*entity.Object{person("a")})
		require.NoError(t, err)
		_, err = sqlgraph.InsertGraph(context.Background(), drv, g)
		require.ErrorContains(t, err, "starting a transaction")
	})
}
