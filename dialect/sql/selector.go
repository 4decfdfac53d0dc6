package sql

import (
	"errors"
	"strconv"
	"strings"
)

var errOnWithoutJoin = errors.New("dialect/sql: ON clause without a JOIN")

// TableView is a view that returns a table view. Can be a Table, or a Selector
// used as a sub-query.
type TableView interface {
	view()
}

// SelectTable is a table selector.
type SelectTable struct {
	Builder
	as   string
	name string
}

// Table returns a new table selector.
//
//	t1 := Table("users").As("u")
//	return Select(t1.C("name"))
func Table(name string) *SelectTable {
	return &SelectTable{name: name}
}

// As adds the AS clause to the table selector.
func (s *SelectTable) As(alias string) *SelectTable {
	s.as = alias
	return s
}

// Name returns the table name.
func (s *SelectTable) Name() string {
	return s.name
}

// Alias returns the table alias, or its name if no alias was set.
func (s *SelectTable) Alias() string {
	if s.as != "" {
		return s.as
	}
	return s.name
}

// C returns a formatted string for the table column.
func (s *SelectTable) C(column string) string {
	return s.Quote(s.Alias()) + "." + s.Quote(column)
}

// ref returns the table reference.
func (s *SelectTable) ref() string {
	b := s.Builder.clone()
	b.WriteString(b.Quote(s.name))
	if s.as != "" {
		b.WriteString(" AS ").WriteString(b.Quote(s.as))
	}
	return b.String()
}

func (*SelectTable) view() {}

// JoinType is the SQL join keyword used by a join clause.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "JOIN"
	JoinLeft  JoinType = "LEFT JOIN"
	JoinRight JoinType = "RIGHT JOIN"
)

// join table option.
type join struct {
	on    *Predicate
	kind  JoinType
	table TableView
}

// selection is a single column of the select list.
type selection struct {
	c  string
	as string
}

// Selector is a builder for the `SELECT` statement.
type Selector struct {
	Builder
	as        string
	selection []selection
	from      TableView
	joins     []join
	where     *Predicate
	order     []string
	limit     *int
	distinct  bool
}

// Select returns a new selector for the `SELECT` statement.
//
//	t1 := Table("users").As("u")
//	t2 := Select().From(Table("groups")).Where(EQ("user_id", 10)).As("g")
//	return Select(t1.C("id"), t2.C("name")).
//			From(t1).
//			Join(t2).
//			On(t1.C("id"), t2.C("user_id"))
func Select(columns ...string) *Selector {
	return (&Selector{}).Select(columns...)
}

// Select changes the columns selection of the SELECT statement.
// Empty selection means all columns *.
func (s *Selector) Select(columns ...string) *Selector {
	s.selection = make([]selection, len(columns))
	for i := range columns {
		s.selection[i] = selection{c: columns[i]}
	}
	return s
}

// AppendSelect appends additional columns to the SELECT statement.
func (s *Selector) AppendSelect(columns ...string) *Selector {
	for i := range columns {
		s.selection = append(s.selection, selection{c: columns[i]})
	}
	return s
}

// AppendSelectAs appends additional column to the SELECT statement with the given alias.
func (s *Selector) AppendSelectAs(column, as string) *Selector {
	s.selection = append(s.selection, selection{c: column, as: as})
	return s
}

// SelectedColumns returns the selected columns in the Selector.
func (s *Selector) SelectedColumns() []string {
	columns := make([]string, 0, len(s.selection))
	for i := range s.selection {
		columns = append(columns, s.selection[i].c)
	}
	return columns
}

// UnqualifiedColumns returns an list of selected columns without
// the table qualifiers and quotes.
//
//	Select(t.C("id"), "name").UnqualifiedColumns() // [id name]
func (s *Selector) UnqualifiedColumns() []string {
	columns := make([]string, 0, len(s.selection))
	for _, sel := range s.selection {
		columns = append(columns, unqualify(sel.c))
	}
	return columns
}

// HasColumn reports if the given unqualified column is already selected.
func (s *Selector) HasColumn(column string) bool {
	for _, sel := range s.selection {
		if unqualify(sel.c) == column && (sel.as == "" || sel.as == column) {
			return true
		}
	}
	return false
}

// From sets the source of `FROM` clause.
func (s *Selector) From(t TableView) *Selector {
	s.from = t
	if st, ok := t.(state); ok {
		st.SetDialect(s.dialect)
	}
	return s
}

// Table returns the selected table. Returns nil if the source
// of the selector is a sub-query.
func (s *Selector) Table() *SelectTable {
	t, _ := s.from.(*SelectTable)
	return t
}

// TableName returns the name of the selected table or alias of selector.
func (s *Selector) TableName() string {
	switch view := s.from.(type) {
	case *SelectTable:
		return view.Alias()
	case *Selector:
		return view.as
	default:
		return ""
	}
}

// As give this selection an alias.
func (s *Selector) As(alias string) *Selector {
	s.as = alias
	return s
}

// Alias returns the alias of the selector, if it is used as a sub-query.
func (s *Selector) Alias() string {
	return s.as
}

// C returns a formatted string for a selected column from this statement.
func (s *Selector) C(column string) string {
	// Qualify the column with the selected table or the sub-query alias.
	if name := s.TableName(); name != "" {
		return s.Quote(name) + "." + s.Quote(column)
	}
	return s.Quote(column)
}

// Join appends a `JOIN` clause to the statement.
func (s *Selector) Join(t TableView) *Selector {
	return s.JoinType(JoinInner, t)
}

// LeftJoin appends a `LEFT JOIN` clause to the statement.
func (s *Selector) LeftJoin(t TableView) *Selector {
	return s.JoinType(JoinLeft, t)
}

// JoinType appends a join clause of the given kind to the statement.
func (s *Selector) JoinType(kind JoinType, t TableView) *Selector {
	s.joins = append(s.joins, join{kind: kind, table: t})
	if st, ok := t.(state); ok {
		st.SetDialect(s.dialect)
	}
	return s
}

// On sets the `ON` clause of the last `JOIN` operation. Calling it more than
// once combines the conditions with AND.
func (s *Selector) On(c1, c2 string) *Selector {
	return s.OnP(ColumnsEQ(c1, c2))
}

// OnP sets or extends the `ON` predicate of the last `JOIN` operation.
func (s *Selector) OnP(p *Predicate) *Selector {
	if len(s.joins) == 0 {
		s.AddError(errOnWithoutJoin)
		return s
	}
	j := &s.joins[len(s.joins)-1]
	j.on = And(j.on, p)
	return s
}

// Joins reports the number of join clauses added to the statement.
func (s *Selector) Joins() int {
	return len(s.joins)
}

// Where sets or appends the given predicate to the statement.
func (s *Selector) Where(p *Predicate) *Selector {
	s.where = And(s.where, p)
	return s
}

// P returns the predicate of a selector.
func (s *Selector) P() *Predicate {
	return s.where
}

// OrderBy appends the `ORDER BY` clause to the `SELECT` statement.
func (s *Selector) OrderBy(columns ...string) *Selector {
	s.order = append(s.order, columns...)
	return s
}

// Limit adds the `LIMIT` clause to the `SELECT` statement.
func (s *Selector) Limit(limit int) *Selector {
	s.limit = &limit
	return s
}

// Distinct adds the DISTINCT keyword to the `SELECT` statement.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// Clone returns a duplicate of the selector, including all associated steps. It can be
// used to prepare common SELECT statements and use them differently after the clone is made.
func (s *Selector) Clone() *Selector {
	if s == nil {
		return nil
	}
	c := *s
	c.selection = append([]selection(nil), s.selection...)
	c.joins = append([]join(nil), s.joins...)
	c.order = append([]string(nil), s.order...)
	c.errs = append([]error(nil), s.errs...)
	if s.where != nil {
		c.where = P().Append(func(b *Builder) { b.Join(s.where) })
	}
	return &c
}

// Query returns query representation of a `SELECT` statement.
func (s *Selector) Query() (string, []any) {
	b := s.Builder.clone()
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.selection) == 0 {
		b.WriteString("*")
	}
	for i, sel := range s.selection {
		if i > 0 {
			b.Comma()
		}
		b.Ident(sel.c)
		if sel.as != "" {
			b.WriteString(" AS ").WriteString(b.Quote(sel.as))
		}
	}
	if s.from != nil {
		b.WriteString(" FROM ")
		s.writeView(&b, s.from)
	}
	for _, join := range s.joins {
		b.Pad().WriteString(string(join.kind)).Pad()
		s.writeView(&b, join.table)
		if join.on != nil {
			b.WriteString(" ON ")
			b.Join(join.on)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		b.Join(s.where)
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.IdentComma(s.order...)
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*s.limit))
	}
	s.total = b.total
	s.errs = b.errs
	return b.String(), b.args
}

func (s *Selector) writeView(b *Builder, v TableView) {
	switch view := v.(type) {
	case *SelectTable:
		view.SetDialect(b.dialect)
		b.WriteString(view.ref())
	case *Selector:
		b.Wrap(func(b *Builder) {
			b.Join(view)
		})
		b.WriteString(" AS ")
		b.WriteString(b.Quote(view.as))
	}
}

func (*Selector) view() {}

// unqualify strips the table qualifier and the quotes from a column.
func unqualify(c string) string {
	if i := strings.LastIndexByte(c, '.'); i != -1 && !strings.ContainsAny(c[i+1:], "`\"") {
		c = c[i+1:]
	} else if i := strings.LastIndex(c, `"."`); i != -1 {
		c = c[i+3:]
	} else if i := strings.LastIndex(c, "`.`"); i != -1 {
		c = c[i+3:]
	}
	return strings.Trim(c, "`\"")
}
