package sql

import (
	"errors"
	"strconv"
	"strings"

	"github.com/syssam/veloxgraph/dialect"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// state wraps all methods for setting and getting
// update state between all queries in the query tree.
type state interface {
	Dialect() string
	SetDialect(string)
	Total() int
	SetTotal(int)
}

// Builder is the base query builder for the sql dsl.
type Builder struct {
	sb      *strings.Builder // underlying builder.
	dialect string           // configured dialect.
	args    []any            // query parameters.
	total   int              // total number of parameters in query tree.
	errs    []error          // errors that added during the query construction.
}

// Quote quotes the given identifier with the characters based
// on the configured dialect. It defaults to "`".
func (b *Builder) Quote(ident string) string {
	q := `"`
	if b.dialect == dialect.MySQL {
		q = "`"
	}
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

// Ident appends the given string as an identifier. Dotted identifiers are
// split and quoted per part. Strings that are already quoted, "*" and
// function calls are written as-is.
func (b *Builder) Ident(s string) *Builder {
	switch {
	case len(s) == 0:
	case s == "*", strings.ContainsAny(s, "`\"()"):
		b.WriteString(s)
	case strings.Contains(s, "."):
		i := strings.Index(s, ".")
		b.WriteString(b.Quote(s[:i]))
		b.WriteByte('.')
		if c := s[i+1:]; c == "*" {
			b.WriteString(c)
		} else {
			b.WriteString(b.Quote(c))
		}
	default:
		b.WriteString(b.Quote(s))
	}
	return b
}

// IdentComma calls Ident on all arguments and adds a comma between them.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.Comma()
		}
		b.Ident(s[i])
	}
	return b
}

// WriteString writes the given string to the builder.
func (b *Builder) WriteString(s string) *Builder {
	if b.sb == nil {
		b.sb = &strings.Builder{}
	}
	b.sb.WriteString(s)
	return b
}

// WriteByte writes the given byte to the builder.
func (b *Builder) WriteByte(c byte) *Builder {
	if b.sb == nil {
		b.sb = &strings.Builder{}
	}
	b.sb.WriteByte(c)
	return b
}

// Pad adds a space to the query.
func (b *Builder) Pad() *Builder {
	return b.WriteByte(' ')
}

// Comma adds a comma to the query.
func (b *Builder) Comma() *Builder {
	return b.WriteString(", ")
}

// Wrap gets a callback, and wraps its result with parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	nb := &Builder{dialect: b.dialect, total: b.total, sb: &strings.Builder{}}
	nb.WriteByte('(')
	f(nb)
	nb.WriteByte(')')
	b.WriteString(nb.String())
	b.args = append(b.args, nb.args...)
	b.total = nb.total
	b.errs = append(b.errs, nb.errs...)
	return b
}

// Arg appends an input argument to the builder.
func (b *Builder) Arg(a any) *Builder {
	b.total++
	b.args = append(b.args, a)
	if b.postgres() {
		b.WriteString("$" + strconv.Itoa(b.total))
	} else {
		b.WriteByte('?')
	}
	return b
}

// Args appends a list of arguments to the builder, separated by commas.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.Comma()
		}
		b.Arg(a[i])
	}
	return b
}

// Join joins a list of Queries to the builder.
func (b *Builder) Join(qs ...Querier) *Builder {
	for _, q := range qs {
		if st, ok := q.(state); ok {
			st.SetDialect(b.dialect)
			st.SetTotal(b.total)
		}
		query, args := q.Query()
		b.WriteString(query)
		b.args = append(b.args, args...)
		b.total += len(args)
		if e, ok := q.(interface{ Err() error }); ok {
			if err := e.Err(); err != nil {
				b.AddError(err)
			}
		}
	}
	return b
}

// String returns the accumulated string.
func (b *Builder) String() string {
	if b.sb == nil {
		return ""
	}
	return b.sb.String()
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.String(), b.args
}

// Dialect returns the dialect of the builder.
func (b Builder) Dialect() string {
	return b.dialect
}

// SetDialect sets the builder dialect. It's used for garnering dialect specific queries.
func (b *Builder) SetDialect(dialect string) {
	b.dialect = dialect
}

// Total returns the total number of arguments so far.
func (b Builder) Total() int {
	return b.total
}

// SetTotal sets the value of the total arguments.
// Used to pass this information between sub queries/expressions.
func (b *Builder) SetTotal(total int) {
	b.total = total
}

// AddError appends an error to the builder errors.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns a concatenated error of all errors encountered during
// the query-building, or were added manually by calling AddError.
func (b Builder) Err() error {
	return errors.Join(b.errs...)
}

// clone returns an empty builder carrying the configuration of b.
func (b Builder) clone() Builder {
	return Builder{dialect: b.dialect, total: b.total, sb: &strings.Builder{}, errs: append([]error(nil), b.errs...)}
}

func (b Builder) postgres() bool {
	return b.dialect == dialect.Postgres
}

func (b Builder) mysql() bool {
	return b.dialect == dialect.MySQL
}

// DialectBuilder prefixes all root builders with the Dialect value.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{name}
}

// Select creates a Selector for the configured dialect.
//
//	Dialect(dialect.Postgres).
//		Select("id", "name").
//		From(Table("users"))
func (d *DialectBuilder) Select(columns ...string) *Selector {
	s := Select(columns...)
	s.SetDialect(d.dialect)
	return s
}

// Table creates a SelectTable for the configured dialect.
func (d *DialectBuilder) Table(name string) *SelectTable {
	t := Table(name)
	t.SetDialect(d.dialect)
	return t
}

// Insert creates an InsertBuilder for the configured dialect.
//
//	Dialect(dialect.Postgres).
//		Insert("users").Columns("age").Values(1).Returning("id")
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	b := Insert(table)
	b.SetDialect(d.dialect)
	return b
}
