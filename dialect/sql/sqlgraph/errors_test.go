package sqlgraph_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/syssam/veloxgraph"
	"github.com/syssam/veloxgraph/dialect"
	"github.com/syssam/veloxgraph/dialect/sql/sqlgraph"
	"github.com/syssam/veloxgraph/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stateError string

func (e stateError) Error() string    { return "driver error" }
func (e stateError) SQLState() string { return string(e) }

type codeError string

func (e codeError) Error() string { return "driver error" }
func (e codeError) Code() string  { return string(e) }

type numberError uint16

func (e numberError) Error() string  { return "driver error" }
func (e numberError) Number() uint16 { return uint16(e) }

func TestConstraintKindOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		kind veloxgraph.ConstraintKind
		ok   bool
	}{
		{"pg_unique", stateError("23505"), veloxgraph.ConstraintUnique, true},
		{"pg_foreign_key", stateError("23503"), veloxgraph.ConstraintForeignKey, true},
		{"pg_check", stateError("23514"), veloxgraph.ConstraintCheck, true},
		{"pg_not_null", stateError("23502"), veloxgraph.ConstraintUnknown, false},
		{"pq_code", codeError("23503"), veloxgraph.ConstraintForeignKey, true},
		{"mysql_duplicate", numberError(1062), veloxgraph.ConstraintUnique, true},
		{"mysql_parent_row", numberError(1451), veloxgraph.ConstraintForeignKey, true},
		{"mysql_child_row", numberError(1452), veloxgraph.ConstraintForeignKey, true},
		{"mysql_check", numberError(3819), veloxgraph.ConstraintCheck, true},
		{"mysql_other", numberError(1205), veloxgraph.ConstraintUnknown, false},
		{"sqlite_unique", errors.New("UNIQUE constraint failed: persons.name"), veloxgraph.ConstraintUnique, true},
		{"sqlite_foreign_key", errors.New("FOREIGN KEY constraint failed"), veloxgraph.ConstraintForeignKey, true},
		{"sqlite_check", errors.New("CHECK constraint failed: age > 0"), veloxgraph.ConstraintCheck, true},
		{"pg_message", errors.New(`pq: insert or update on table "animals" violates foreign key constraint "animals_owner_id_fkey"`), veloxgraph.ConstraintForeignKey, true},
		{"mysql_message", errors.New("Error 3819: Check constraint 'age_positive' is violated."), veloxgraph.ConstraintCheck, true},
		{"wrapped", fmt.Errorf("exec: %w", numberError(1452)), veloxgraph.ConstraintForeignKey, true},
		{"classified", veloxgraph.NewConstraintError(veloxgraph.ConstraintCheck, "persons", errors.New("x")), veloxgraph.ConstraintCheck, true},
		{"other", errors.New("connection reset"), veloxgraph.ConstraintUnknown, false},
		{"nil", nil, veloxgraph.ConstraintUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := sqlgraph.ConstraintKindOf(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestSQLInsert_ConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind veloxgraph.ConstraintKind
	}{
		{"unique", stateError("23505"), veloxgraph.ConstraintUnique},
		{"foreign_key", stateError("23503"), veloxgraph.ConstraintForeignKey},
		{"check", errors.New(`pq: new row for relation "persons" violates check constraint "name_not_empty"`), veloxgraph.ConstraintCheck},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv, mock := mockDriver(t, dialect.Postgres)
			mock.ExpectQuery(`INSERT INTO "persons" ("name") VALUES ($1) RETURNING "id"`).
				WithArgs("a").
				WillReturnError(tt.err)
			_, err := sqlgraph.SQLInsert(dialect.Postgres, drv)(context.Background(), insertion(t, "Person", person("a")))
			var cerr veloxgraph.ConstraintError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.kind, cerr.Kind)
			assert.Equal(t, "persons", cerr.Table)
		})
	}
}

func TestGraphInserter_ConstraintErrors(t *testing.T) {
	a := person("a").AddMany("pets", entity.New(map[string]any{"name": "x"}))
	g, err := sqlgraph.BuildGraph(testSchema(t).Type("Person"), []*entity.Object{a})
	require.NoError(t, err)
	r := newRecorder()
	r.fail["animals"] = numberError(1452)
	_, err = sqlgraph.NewGraphInserter(g).Execute(context.Background(), r.insert)
	require.True(t, veloxgraph.IsMutationError(err))
	var cerr veloxgraph.ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, veloxgraph.ConstraintForeignKey, cerr.Kind)
	assert.Equal(t, "animals", cerr.Table)
	assert.ErrorIs(t, err, numberError(1452))
}
