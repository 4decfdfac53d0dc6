// Package entity holds the in-memory object graph that the graph inserter
// persists and the eager loader reconstructs.
package entity

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/huandu/go-clone"

	"github.com/syssam/veloxgraph"
)

// ID is the value of an identifier, one element per identifier column.
type ID []any

// Key returns a string that is equal for equal identifiers.
func (id ID) Key() string {
	var b strings.Builder
	for i, v := range id {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		switch v := v.(type) {
		case []byte:
			b.Write(v)
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

// Object is a node of an object graph.
//
// One holds singular relations: a present key with a nil value means the
// relation was loaded and no related row exists. Many holds plural
// relations in document order. Extras holds join-table columns of the
// many-to-many relation the object was reached through.
//
// UID and Ref are synthetic identifiers used only while inserting a graph:
// UID names the object so other parts of the graph can point at it, and
// Ref marks the object as a bare reference to the object with that UID.
// Both are cleared once the insertion finishes.
type Object struct {
	Fields map[string]any
	One    map[string]*Object
	Many   map[string][]*Object
	Extras map[string]any
	UID    string
	Ref    string
}

// New returns an object holding the given fields.
func New(fields map[string]any) *Object {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Object{Fields: fields}
}

// NewRef returns a bare reference to the object with the given uid.
func NewRef(uid string) *Object {
	return &Object{Fields: make(map[string]any), Ref: uid}
}

// Get returns the value of a field, or nil.
func (o *Object) Get(name string) any {
	return o.Fields[name]
}

// Set sets the value of a field.
func (o *Object) Set(name string, v any) *Object {
	if o.Fields == nil {
		o.Fields = make(map[string]any)
	}
	o.Fields[name] = v
	return o
}

// SetExtra sets the value of a join-table extra.
func (o *Object) SetExtra(name string, v any) *Object {
	if o.Extras == nil {
		o.Extras = make(map[string]any)
	}
	o.Extras[name] = v
	return o
}

// SetOne sets a singular relation. A nil value records a loaded, empty relation.
func (o *Object) SetOne(name string, v *Object) *Object {
	if o.One == nil {
		o.One = make(map[string]*Object)
	}
	o.One[name] = v
	return o
}

// SetMany replaces a plural relation.
func (o *Object) SetMany(name string, vs []*Object) *Object {
	if o.Many == nil {
		o.Many = make(map[string][]*Object)
	}
	if vs == nil {
		vs = []*Object{}
	}
	o.Many[name] = vs
	return o
}

// AddMany appends objects to a plural relation.
func (o *Object) AddMany(name string, vs ...*Object) *Object {
	return o.SetMany(name, append(o.Many[name], vs...))
}

// Loaded reports if the given relation is present on the object.
func (o *Object) Loaded(name string) bool {
	if _, ok := o.One[name]; ok {
		return true
	}
	_, ok := o.Many[name]
	return ok
}

// OneOrErr returns the singular relation, or an error if it was not
// loaded or no related row exists.
func (o *Object) OneOrErr(name string) (*Object, error) {
	v, ok := o.One[name]
	switch {
	case !ok:
		return nil, veloxgraph.NewNotLoadedError(name)
	case v == nil:
		return nil, veloxgraph.NewNotFoundError(name)
	}
	return v, nil
}

// ManyOrErr returns the plural relation, or an error if it was not loaded.
func (o *Object) ManyOrErr(name string) ([]*Object, error) {
	vs, ok := o.Many[name]
	if !ok {
		return nil, veloxgraph.NewNotLoadedError(name)
	}
	return vs, nil
}

// Relations returns the names of all relations present on the object, sorted.
func (o *Object) Relations() []string {
	names := slices.Collect(maps.Keys(o.One))
	for name := range o.Many {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IDOf returns the values of the given columns. It reports false if any of
// them is missing or null.
func (o *Object) IDOf(columns []string) (ID, bool) {
	id := make(ID, len(columns))
	for i, c := range columns {
		v, ok := o.Fields[c]
		if !ok || v == nil {
			return nil, false
		}
		id[i] = v
	}
	return id, true
}

// CopyFields copies all fields of src onto o. Values are deep-copied so
// the two objects never share mutable field values.
func (o *Object) CopyFields(src *Object) {
	for k, v := range src.Fields {
		o.Set(k, clone.Clone(v))
	}
}

// Walk calls fn for o and every object reachable from it, depth-first in
// relation name order. Each object is visited once.
func (o *Object) Walk(fn func(*Object)) {
	seen := make(map[*Object]bool)
	var walk func(*Object)
	walk = func(o *Object) {
		if o == nil || seen[o] {
			return
		}
		seen[o] = true
		fn(o)
		for _, name := range o.Relations() {
			if v, ok := o.One[name]; ok {
				walk(v)
				continue
			}
			for _, v := range o.Many[name] {
				walk(v)
			}
		}
	}
	walk(o)
}
