package sqlgraph

import (
	"errors"

	"github.com/syssam/veloxgraph/eager"
	"github.com/syssam/veloxgraph/entity"
	"github.com/syssam/veloxgraph/schema"
)

// PathInfo describes one relation path of an eager expression: where its
// columns are found in a joined row and how its objects attach to the
// objects of the parent path.
type PathInfo struct {
	// Path is the dotted relation path, empty for the root.
	Path string
	// Key is the relation key objects are stored under on their parent.
	Key string
	// Alias is the table alias of the path.
	Alias    string
	Type     *schema.Type
	Relation *schema.Relation
	Expr     *eager.Expr
	Parent   *PathInfo
	Children []*PathInfo

	// Columns are the selected table columns, in select order.
	Columns []string
	// Omit marks the columns selected only to reconstruct the tree.
	Omit map[string]bool
	// Table is the column metadata of the path table.
	Table *TableInfo

	index     int
	joinAlias string
}

// Root reports if p is the root path.
func (p *PathInfo) Root() bool {
	return p.Parent == nil
}

// OneToOne reports if the path yields at most one object per parent.
func (p *PathInfo) OneToOne() bool {
	return p.Relation != nil && p.Relation.OneToOne()
}

// ColumnAlias returns the alias of a column in the joined row. Root
// columns keep their name.
func (p *PathInfo) ColumnAlias(c string) string {
	if p.Root() {
		return c
	}
	return p.Alias + ":" + c
}

// ID returns the identifier of the path object in the given row. It
// reports false if any identifier column is null, meaning the outer
// join found no related row.
func (p *PathInfo) ID(row map[string]any) (entity.ID, bool) {
	id := make(entity.ID, len(p.Type.IDColumns))
	for i, c := range p.Type.IDColumns {
		v := row[p.ColumnAlias(c)]
		if v == nil {
			return nil, false
		}
		id[i] = v
	}
	return id, true
}

// object builds the object of the path from a row.
func (p *PathInfo) object(row map[string]any) *entity.Object {
	o := entity.New(make(map[string]any, len(p.Columns)))
	for _, c := range p.Columns {
		if p.Omit[c] {
			continue
		}
		v := row[p.ColumnAlias(c)]
		switch {
		case p.Table != nil && p.Table.IsJSON(c), p.Type.IsJSON(c):
			v = entity.ParseValue(v)
		default:
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
		}
		o.Set(c, v)
	}
	if p.Relation != nil && p.Relation.Through != nil {
		for _, e := range p.Relation.Through.Extras {
			v := row[p.ColumnAlias(e.Name)]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			o.SetExtra(e.Name, v)
		}
	}
	for _, c := range p.Children {
		if c.OneToOne() {
			o.SetOne(c.Key, nil)
		} else {
			o.SetMany(c.Key, nil)
		}
	}
	return o
}

// branch holds the objects of one path under one parent object, keyed
// by identifier.
type branch struct {
	path   int
	parent *entity.Object
}

var errNotBuilt = errors.New("sqlgraph: rows to tree: builder was not built")

// RowsToTree reconstructs the object tree from the rows of the joined
// statement, as returned by sql.ScanMaps. Repeated rows of the same
// object collapse into one object. Singular relations hold an object or
// nil, plural relations an ordered list without duplicates.
func RowsToTree(paths []*PathInfo, rows []map[string]any) ([]*entity.Object, error) {
	if len(paths) == 0 {
		return nil, errNotBuilt
	}
	var (
		roots    = []*entity.Object{}
		branches = make(map[branch]map[string]*entity.Object)
		current  = make([]*entity.Object, len(paths))
	)
	for _, row := range rows {
		for i, p := range paths {
			current[i] = nil
			var parent *entity.Object
			if !p.Root() {
				if parent = current[p.Parent.index]; parent == nil {
					continue
				}
			}
			id, ok := p.ID(row)
			if !ok {
				continue
			}
			key := branch{path: i, parent: parent}
			objs, ok := branches[key]
			if !ok {
				objs = make(map[string]*entity.Object)
				branches[key] = objs
			}
			if o, ok := objs[id.Key()]; ok {
				current[i] = o
				continue
			}
			if p.OneToOne() && len(objs) > 0 {
				continue
			}
			o := p.object(row)
			objs[id.Key()] = o
			current[i] = o
			switch {
			case p.Root():
				roots = append(roots, o)
			case p.OneToOne():
				parent.SetOne(p.Key, o)
			default:
				parent.AddMany(p.Key, o)
			}
		}
	}
	return roots, nil
}
