package sql

import "fmt"

// InsertBuilder is a builder for `INSERT INTO` statement.
type InsertBuilder struct {
	Builder
	table     string
	columns   []string
	defaults  bool
	returning []string
	values    [][]any
}

// Insert creates a builder for the `INSERT INTO` statement.
//
//	Insert("users").
//		Columns("name", "age").
//		Values("a8m", 10).
//		Values("foo", 20)
//
// Note: Insert inserts all values in one batch.
func Insert(table string) *InsertBuilder { return &InsertBuilder{table: table} }

// Columns sets the columns of the insert statement.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values append a value tuple for the insert statement.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Default sets the default values clause based on the dialect type.
func (i *InsertBuilder) Default() *InsertBuilder {
	i.defaults = true
	return i
}

// Returning adds the `RETURNING` clause to the insert statement.
// Supported by SQLite and PostgreSQL.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns query representation of an `INSERT INTO` statement.
func (i *InsertBuilder) Query() (string, []any) {
	b := i.Builder.clone()
	b.WriteString("INSERT INTO ").WriteString(b.Quote(i.table)).Pad()
	switch {
	case i.defaults && len(i.columns) == 0:
		if b.mysql() {
			b.WriteString("VALUES ()")
		} else {
			b.WriteString("DEFAULT VALUES")
		}
	default:
		b.Wrap(func(b *Builder) { b.IdentComma(i.columns...) })
		b.WriteString(" VALUES ")
		for j, v := range i.values {
			if j > 0 {
				b.Comma()
			}
			if len(v) != len(i.columns) {
				b.AddError(fmt.Errorf("dialect/sql: insert %q: row %d has %d values for %d columns", i.table, j, len(v), len(i.columns)))
			}
			b.Wrap(func(b *Builder) { b.Args(v...) })
		}
	}
	if len(i.returning) > 0 && !b.mysql() {
		b.WriteString(" RETURNING ")
		b.IdentComma(i.returning...)
	}
	i.total = b.total
	i.errs = b.errs
	return b.String(), b.args
}
