package schema

import (
	"fmt"
	"slices"

	"github.com/go-openapi/inflect"
)

// Rel is an edge relation type.
type Rel int

// Relation types.
const (
	Unk        Rel = iota // Unknown.
	O2O                   // One to one / has one.
	O2M                   // One to many / has many.
	M2O                   // Many to one / belongs to.
	M2M                   // Many to many through a join table.
	O2OThrough            // One to one through a join table.
)

// String returns the relation name.
func (r Rel) String() string {
	switch r {
	case O2O:
		return "O2O"
	case O2M:
		return "O2M"
	case M2O:
		return "M2O"
	case M2M:
		return "M2M"
	case O2OThrough:
		return "O2OThrough"
	default:
		return "Unknown"
	}
}

// ParseRel returns the relation type for its name.
func ParseRel(s string) (Rel, error) {
	for _, r := range []Rel{O2O, O2M, M2O, M2M, O2OThrough} {
		if r.String() == s {
			return r, nil
		}
	}
	return Unk, fmt.Errorf("schema: unknown relation type %q", s)
}

// OneToOne reports if the relation yields at most one related object.
func (r Rel) OneToOne() bool {
	return r == O2O || r == M2O || r == O2OThrough
}

// Through reports if the relation goes through a join table.
func (r Rel) Through() bool {
	return r == M2M || r == O2OThrough
}

// Type describes an entity type and the table backing it.
type Type struct {
	Name      string
	Table     string
	IDColumns []string
	// Columns lists all declared columns of the table, identifier
	// and foreign-key columns included.
	Columns []string
	// JSONColumns lists the columns holding JSON documents.
	JSONColumns []string

	relations []*Relation
}

// Relation returns the relation with the given name, or nil.
func (t *Type) Relation(name string) *Relation {
	for _, r := range t.relations {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Relations returns the relations of the type in declaration order.
func (t *Type) Relations() []*Relation {
	return t.relations
}

// HasColumn reports if the type declares the given column.
func (t *Type) HasColumn(c string) bool {
	return slices.Contains(t.Columns, c)
}

// IsJSON reports if the given column holds JSON.
func (t *Type) IsJSON(c string) bool {
	return slices.Contains(t.JSONColumns, c)
}

// IsID reports if the given column is part of the identifier.
func (t *Type) IsID(c string) bool {
	return slices.Contains(t.IDColumns, c)
}

func (t *Type) addColumns(cs ...string) {
	for _, c := range cs {
		if !t.HasColumn(c) {
			t.Columns = append(t.Columns, c)
		}
	}
}

// Extra is a join-table column carried onto the related object.
type Extra struct {
	// Name is the property name on the related object.
	Name string `yaml:"name"`
	// Column is the join-table column. Defaults to Name.
	Column string `yaml:"column,omitempty"`
}

// JoinTable describes the association table of a many-to-many or
// one-to-one-through relation.
type JoinTable struct {
	Table string
	// OwnerColumns reference the owner identifier.
	OwnerColumns []string
	// RelatedColumns reference the related identifier.
	RelatedColumns []string
	Extras         []Extra
}

// Columns returns all columns of the join table.
func (j *JoinTable) Columns() []string {
	cs := append(append([]string(nil), j.OwnerColumns...), j.RelatedColumns...)
	for _, e := range j.Extras {
		cs = append(cs, e.Column)
	}
	return cs
}

// Relation is a named edge between an owner type and a related type.
//
// For direct relations the join condition is
// owner.OwnerColumns[i] = related.RelatedColumns[i]. For M2O the owner
// columns are the foreign key, for O2O and O2M the related columns are.
// Through relations join owner.OwnerColumns to Through.OwnerColumns and
// Through.RelatedColumns to related.RelatedColumns, where OwnerColumns and
// RelatedColumns are the identifiers of the two types.
type Relation struct {
	Name           string
	Rel            Rel
	Owner          *Type
	Related        *Type
	OwnerColumns   []string
	RelatedColumns []string
	Through        *JoinTable
}

// OneToOne reports if the relation yields at most one related object.
func (r *Relation) OneToOne() bool {
	return r.Rel.OneToOne()
}

// OwnerHoldsFK reports if the owner table holds the foreign key.
func (r *Relation) OwnerHoldsFK() bool {
	return r.Rel == M2O
}

// RelatedHoldsFK reports if the related table holds the foreign key.
func (r *Relation) RelatedHoldsFK() bool {
	return r.Rel == O2O || r.Rel == O2M
}

// EdgeSpec holds the information for declaring an edge between two types.
type EdgeSpec struct {
	Rel Rel
	// Inverse marks through edges whose join-table columns are listed
	// related first.
	Inverse bool
	// Table is the table holding the foreign key for direct relations,
	// or the join table for through relations.
	Table string
	// Columns are the foreign-key columns for direct relations. For through
	// relations they are the owner and related join-table columns.
	Columns []string
	Extras  []Extra
}

// Schema is a set of entity types and the relations between them.
type Schema struct {
	Types []*Type
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{}
}

// Type returns the type with the given name, or nil.
func (s *Schema) Type(name string) *Type {
	for _, t := range s.Types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// TypeByTable returns the type backed by the given table, or nil.
func (s *Schema) TypeByTable(table string) *Type {
	for _, t := range s.Types {
		if t.Table == table {
			return t
		}
	}
	return nil
}

// AddType adds an entity type to the schema. A missing table name is derived
// from the type name, a missing identifier defaults to "id".
func (s *Schema) AddType(t *Type) error {
	if t.Name == "" {
		return fmt.Errorf("schema: type name is required")
	}
	if s.Type(t.Name) != nil {
		return fmt.Errorf("schema: duplicate type %q", t.Name)
	}
	if t.Table == "" {
		t.Table = inflect.Pluralize(inflect.Underscore(t.Name))
	}
	if len(t.IDColumns) == 0 {
		t.IDColumns = []string{"id"}
	}
	// Identifier columns come first in the column list.
	cols := t.Columns
	t.Columns = append([]string(nil), t.IDColumns...)
	t.addColumns(cols...)
	s.Types = append(s.Types, t)
	return nil
}

// MustAddType is like AddType but panics on error.
func (s *Schema) MustAddType(t *Type) *Type {
	if err := s.AddType(t); err != nil {
		panic(err)
	}
	return t
}

// AddE adds an edge to the schema graph.
//
//	s.AddE("pets", &EdgeSpec{Rel: O2M, Table: "pets", Columns: []string{"owner_id"}}, "user", "pet")
//	s.AddE("groups", &EdgeSpec{Rel: M2M, Table: "user_groups", Columns: []string{"user_id", "group_id"}}, "user", "group")
func (s *Schema) AddE(name string, spec *EdgeSpec, from, to string) error {
	owner, related := s.Type(from), s.Type(to)
	switch {
	case owner == nil:
		return fmt.Errorf("schema: edge %q: unknown type %q", name, from)
	case related == nil:
		return fmt.Errorf("schema: edge %q: unknown type %q", name, to)
	case owner.Relation(name) != nil:
		return fmt.Errorf("schema: duplicate edge %q on type %q", name, from)
	}
	r := &Relation{Name: name, Rel: spec.Rel, Owner: owner, Related: related}
	switch spec.Rel {
	case O2O, O2M:
		if spec.Table != "" && spec.Table != related.Table {
			return fmt.Errorf("schema: edge %q: foreign key must be held by %q", name, related.Table)
		}
		r.OwnerColumns = owner.IDColumns
		r.RelatedColumns = spec.Columns
		if len(r.RelatedColumns) == 0 {
			r.RelatedColumns = fkColumns(inflect.Singularize(owner.Table), owner.IDColumns)
		}
		related.addColumns(r.RelatedColumns...)
	case M2O:
		if spec.Table != "" && spec.Table != owner.Table {
			return fmt.Errorf("schema: edge %q: foreign key must be held by %q", name, owner.Table)
		}
		r.OwnerColumns = spec.Columns
		if len(r.OwnerColumns) == 0 {
			r.OwnerColumns = fkColumns(inflect.Underscore(name), related.IDColumns)
		}
		r.RelatedColumns = related.IDColumns
		owner.addColumns(r.OwnerColumns...)
	case M2M, O2OThrough:
		j, err := joinTable(name, spec, owner, related)
		if err != nil {
			return err
		}
		r.OwnerColumns, r.RelatedColumns, r.Through = owner.IDColumns, related.IDColumns, j
	default:
		return fmt.Errorf("schema: edge %q: unknown relation type %d", name, spec.Rel)
	}
	if len(r.OwnerColumns) != len(r.RelatedColumns) {
		return fmt.Errorf("schema: edge %q: %d owner columns for %d related columns", name, len(r.OwnerColumns), len(r.RelatedColumns))
	}
	owner.relations = append(owner.relations, r)
	return nil
}

// MustAddE is like AddE but panics on error.
func (s *Schema) MustAddE(name string, spec *EdgeSpec, from, to string) {
	if err := s.AddE(name, spec, from, to); err != nil {
		panic(err)
	}
}

func joinTable(name string, spec *EdgeSpec, owner, related *Type) (*JoinTable, error) {
	j := &JoinTable{Table: spec.Table, Extras: spec.Extras}
	if j.Table == "" {
		if spec.Inverse {
			return nil, fmt.Errorf("schema: inverse edge %q requires a join table", name)
		}
		j.Table = inflect.Singularize(owner.Table) + "_" + inflect.Underscore(name)
	}
	oc, rc := len(owner.IDColumns), len(related.IDColumns)
	switch cols := spec.Columns; {
	case len(cols) == 0:
		j.OwnerColumns = fkColumns(inflect.Singularize(owner.Table), owner.IDColumns)
		j.RelatedColumns = fkColumns(inflect.Singularize(related.Table), related.IDColumns)
	case len(cols) != oc+rc:
		return nil, fmt.Errorf("schema: edge %q: join table %q expects %d columns, got %d", name, j.Table, oc+rc, len(cols))
	case spec.Inverse:
		j.RelatedColumns, j.OwnerColumns = cols[:rc], cols[rc:]
	default:
		j.OwnerColumns, j.RelatedColumns = cols[:oc], cols[oc:]
	}
	for i := range j.Extras {
		if j.Extras[i].Column == "" {
			j.Extras[i].Column = j.Extras[i].Name
		}
	}
	return j, nil
}

// fkColumns derives foreign-key column names: "owner_id" for a single "id"
// identifier, "owner_<column>" otherwise.
func fkColumns(prefix string, ids []string) []string {
	cs := make([]string, len(ids))
	for i, c := range ids {
		cs[i] = prefix + "_" + c
	}
	return cs
}
