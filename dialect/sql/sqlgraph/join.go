package sqlgraph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/syssam/veloxgraph"
	"github.com/syssam/veloxgraph/dialect"
	"github.com/syssam/veloxgraph/dialect/sql"
	"github.com/syssam/veloxgraph/eager"
	"github.com/syssam/veloxgraph/entity"
	"github.com/syssam/veloxgraph/schema"
)

// JoinOption configures a RelationJoinBuilder.
type JoinOption func(*RelationJoinBuilder)

// WithMinimize makes the builder use short generated table aliases
// (_t1, _t2, ...) instead of relation paths.
func WithMinimize() JoinOption {
	return func(b *RelationJoinBuilder) {
		b.minimize = true
	}
}

// WithAliases replaces relation names by the given aliases when encoding
// paths. For example {"children": "c"} encodes "children.pets" as "c.pets".
func WithAliases(aliases map[string]string) JoinOption {
	return func(b *RelationJoinBuilder) {
		b.aliases = aliases
	}
}

// WithFilters registers the named filters an expression may reference.
// A filter receives the selector of the related table.
func WithFilters(filters map[string]func(*sql.Selector)) JoinOption {
	return func(b *RelationJoinBuilder) {
		b.filters = filters
	}
}

// WithJoinType sets the join used for relations. Defaults to LEFT JOIN.
func WithJoinType(t sql.JoinType) JoinOption {
	return func(b *RelationJoinBuilder) {
		b.joinType = t
	}
}

// WithJoinLogger sets the logger of the builder.
func WithJoinLogger(l *slog.Logger) JoinOption {
	return func(b *RelationJoinBuilder) {
		b.log = l
	}
}

// RelationJoinBuilder loads a type together with the relations of an
// eager expression using one joined statement, and rebuilds the object
// tree from the joined rows.
//
//	b := sqlgraph.NewRelationJoinBuilder(person, eager.MustParse("[pets, parent]"), store)
//	selector := sql.Dialect(dialect.Postgres).Select()
//	if err := b.Build(ctx, selector); err != nil {
//		return err
//	}
//	query, args := selector.Query()
//
// A builder is not safe for concurrent use.
type RelationJoinBuilder struct {
	root     *schema.Type
	expr     *eager.Expr
	store    *ColumnStore
	minimize bool
	aliases  map[string]string
	filters  map[string]func(*sql.Selector)
	joinType sql.JoinType
	log      *slog.Logger

	paths  []*PathInfo
	encode map[string]string
	decode map[string]string
}

// NewRelationJoinBuilder returns a builder for the given root type and
// expression. A nil store makes the builder use the columns declared by
// the schema.
func NewRelationJoinBuilder(root *schema.Type, expr *eager.Expr, store *ColumnStore, opts ...JoinOption) *RelationJoinBuilder {
	if expr == nil {
		expr = eager.Root()
	}
	b := &RelationJoinBuilder{
		root:     root,
		expr:     expr,
		store:    store,
		joinType: sql.JoinLeft,
		log:      discardLogger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build adds the joins and the column selection of the expression to
// the selector. Columns already selected by the caller restrict the root
// columns. All validation happens before the selector is modified.
func (b *RelationJoinBuilder) Build(ctx context.Context, s *sql.Selector) error {
	return b.build(ctx, s, false)
}

// BuildJoinOnly adds the joins of the expression to the selector and
// leaves its selection untouched.
func (b *RelationJoinBuilder) BuildJoinOnly(ctx context.Context, s *sql.Selector) error {
	return b.build(ctx, s, true)
}

func (b *RelationJoinBuilder) build(ctx context.Context, s *sql.Selector, joinOnly bool) error {
	expr, err := b.expr.Expand()
	if err != nil {
		return err
	}
	rootAlias := s.TableName()
	if rootAlias == "" {
		rootAlias = b.root.Table
	}
	if err := b.plan(expr, rootAlias); err != nil {
		return err
	}
	if !joinOnly {
		if err := b.columns(ctx, lo.Without(s.UnqualifiedColumns(), "*")); err != nil {
			return err
		}
	}
	d := s.Dialect()
	if s.TableName() == "" {
		s.From(sql.Dialect(d).Table(b.root.Table))
	}
	if !joinOnly {
		s.Select()
		root := b.paths[0]
		t := sql.Dialect(d).Table(root.Alias)
		for _, c := range root.Columns {
			s.AppendSelect(t.C(c))
		}
	}
	for _, p := range b.paths[1:] {
		b.join(s, p, joinOnly)
	}
	return nil
}

// plan builds the path tree of the expression and assigns table aliases.
func (b *RelationJoinBuilder) plan(expr *eager.Expr, rootAlias string) error {
	root := &PathInfo{Alias: rootAlias, Type: b.root, Expr: expr}
	b.paths = []*PathInfo{root}
	b.encode = map[string]string{"": rootAlias}
	b.decode = map[string]string{rootAlias: ""}
	return b.planChildren(root)
}

func (b *RelationJoinBuilder) planChildren(p *PathInfo) error {
	for _, e := range p.Expr.Children {
		path := joinPath(p.Path, e.Key())
		r := p.Type.Relation(e.Name)
		if r == nil {
			return veloxgraph.Validationf(path, veloxgraph.ErrUnknownRelation, "type %s", p.Type.Name)
		}
		for _, f := range e.Filters {
			if b.filters[f] == nil {
				return veloxgraph.Validationf(path, veloxgraph.ErrUnknownFilter, "%q", f)
			}
		}
		alias := b.alias(path)
		if err := checkAlias(alias); err != nil {
			return err
		}
		if other, ok := b.decode[alias]; ok {
			return veloxgraph.NewValidationError(path, fmt.Errorf("sqlgraph: alias %q already used by path %q", alias, other))
		}
		b.encode[path], b.decode[alias] = alias, path
		child := &PathInfo{
			Path:     path,
			Key:      e.Key(),
			Alias:    alias,
			Type:     r.Related,
			Relation: r,
			Expr:     e,
			Parent:   p,
			index:    len(b.paths),
		}
		if r.Through != nil {
			child.joinAlias = alias + "_join"
			if err := checkAlias(child.joinAlias); err != nil {
				return err
			}
		}
		b.log.Debug("sqlgraph: join path", "path", path, "alias", alias, "table", r.Related.Table, "rel", r.Rel)
		p.Children = append(p.Children, child)
		b.paths = append(b.paths, child)
		if err := b.planChildren(child); err != nil {
			return err
		}
	}
	return nil
}

// columns computes the selection of every path. Identifier columns are
// always selected and marked omitted when not requested.
func (b *RelationJoinBuilder) columns(ctx context.Context, rootColumns []string) error {
	if b.store != nil {
		tables := lo.Map(b.paths, func(p *PathInfo, _ int) string { return p.Type.Table })
		if err := b.store.Prefetch(ctx, tables...); err != nil {
			return err
		}
	}
	for _, p := range b.paths {
		info := &TableInfo{Table: p.Type.Table, Columns: p.Type.Columns, JSON: p.Type.JSONColumns}
		if b.store != nil {
			var err error
			if info, err = b.store.Columns(ctx, p.Type.Table); err != nil {
				return err
			}
		}
		p.Table = info
		requested := p.Expr.Select
		if p.Root() && len(rootColumns) > 0 {
			requested = rootColumns
		}
		if requested == nil {
			requested = info.Columns
		}
		p.Columns, p.Omit = nil, make(map[string]bool)
		for _, c := range requested {
			if !info.HasColumn(c) {
				return veloxgraph.Validationf(joinPath(p.Path, c), veloxgraph.ErrUnknownColumn, "table %q", p.Type.Table)
			}
			if !slices.Contains(p.Columns, c) {
				p.Columns = append(p.Columns, c)
			}
		}
		for _, c := range p.Type.IDColumns {
			if !slices.Contains(p.Columns, c) {
				p.Columns = append(p.Columns, c)
				p.Omit[c] = true
			}
		}
		for _, c := range p.Columns {
			if err := checkAlias(p.ColumnAlias(c)); err != nil {
				return err
			}
		}
		if p.Relation != nil && p.Relation.Through != nil {
			for _, e := range p.Relation.Through.Extras {
				if err := checkAlias(p.ColumnAlias(e.Name)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// join emits the join clauses of p and, unless joinOnly, its columns.
func (b *RelationJoinBuilder) join(s *sql.Selector, p *PathInfo, joinOnly bool) {
	var (
		d       = s.Dialect()
		r       = p.Relation
		parent  = sql.Dialect(d).Table(p.Parent.Alias)
		related = sql.Dialect(d).Table(p.Alias)
		view    sql.TableView
	)
	if len(p.Expr.Filters) > 0 {
		view = b.subquery(d, p, joinOnly)
	} else {
		view = sql.Dialect(d).Table(r.Related.Table).As(p.Alias)
	}
	var through *sql.SelectTable
	switch r.Rel {
	case schema.M2M, schema.O2OThrough:
		through = sql.Dialect(d).Table(r.Through.Table).As(p.joinAlias)
		s.JoinType(b.joinType, through)
		for i := range r.OwnerColumns {
			s.On(parent.C(r.OwnerColumns[i]), through.C(r.Through.OwnerColumns[i]))
		}
		s.JoinType(b.joinType, view)
		for i := range r.RelatedColumns {
			s.On(through.C(r.Through.RelatedColumns[i]), related.C(r.RelatedColumns[i]))
		}
	case schema.O2O, schema.O2M, schema.M2O:
		s.JoinType(b.joinType, view)
		for i := range r.OwnerColumns {
			s.On(parent.C(r.OwnerColumns[i]), related.C(r.RelatedColumns[i]))
		}
	}
	if joinOnly {
		return
	}
	for _, c := range p.Columns {
		s.AppendSelectAs(related.C(c), p.ColumnAlias(c))
	}
	if through != nil {
		for _, e := range r.Through.Extras {
			s.AppendSelectAs(through.C(e.Column), p.ColumnAlias(e.Name))
		}
	}
}

// subquery returns the filtered selection of the related table of p. It
// selects the requested columns plus every column a join depends on.
func (b *RelationJoinBuilder) subquery(d string, p *PathInfo, joinOnly bool) *sql.Selector {
	r := p.Relation
	var columns []string
	if !joinOnly {
		columns = append(columns, p.Columns...)
	}
	columns = append(columns, r.RelatedColumns...)
	columns = append(columns, r.Related.IDColumns...)
	for _, c := range p.Children {
		columns = append(columns, c.Relation.OwnerColumns...)
	}
	t := sql.Dialect(d).Table(r.Related.Table)
	sub := sql.Dialect(d).Select().From(t)
	for _, c := range lo.Uniq(columns) {
		sub.AppendSelect(t.C(c))
	}
	for _, f := range p.Expr.Filters {
		b.filters[f](sub)
	}
	return sub.As(p.Alias)
}

// alias returns the table alias of a path.
func (b *RelationJoinBuilder) alias(path string) string {
	if b.minimize {
		return "_t" + strconv.Itoa(len(b.paths))
	}
	segments := strings.Split(path, ".")
	for i, s := range segments {
		if a, ok := b.aliases[s]; ok {
			segments[i] = a
		}
	}
	return strings.Join(segments, ".")
}

func checkAlias(alias string) error {
	if len(alias) > dialect.MaxIdentLen {
		return veloxgraph.Validationf(alias, veloxgraph.ErrAliasTooLong, "%d characters, limit is %d", len(alias), dialect.MaxIdentLen)
	}
	return nil
}

// Encode returns the table alias of a relation path. Paths not visited
// by the last build are encoded without minimizing.
func (b *RelationJoinBuilder) Encode(path string) string {
	if a, ok := b.encode[path]; ok {
		return a
	}
	if path == "" {
		return b.root.Table
	}
	minimize := b.minimize
	b.minimize = false
	defer func() { b.minimize = minimize }()
	return b.alias(path)
}

// Decode returns the relation path of a table alias assigned by the last
// build.
func (b *RelationJoinBuilder) Decode(alias string) (string, bool) {
	path, ok := b.decode[alias]
	return path, ok
}

// Paths returns the paths of the last build, root first, parents before
// their children.
func (b *RelationJoinBuilder) Paths() []*PathInfo {
	return b.paths
}

// RowsToTree reconstructs the object tree from the rows of the statement
// prepared by Build.
func (b *RelationJoinBuilder) RowsToTree(rows []map[string]any) ([]*entity.Object, error) {
	return RowsToTree(b.paths, rows)
}
