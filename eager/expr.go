// Package eager implements relation expressions: depth-bounded trees naming
// which relations, and sub-relations, to load together with an entity.
//
//	pets
//	[pets, movies]
//	pets.[toys, vet as doctor]
//	children(onlyAdults, byName).pets
//	parent.^3
//
// A node may carry an alias ("as"), named filters in parentheses and a
// recursion marker: "^" repeats the node up to MaxDepth levels, "^N" up to N.
package eager

import (
	"strconv"
	"strings"

	"github.com/syssam/veloxgraph"
)

// MaxDepth is the deepest nesting an expression may have once
// recursion is expanded.
const MaxDepth = 64

// Expr is a node of a relation expression. The root node has no name.
type Expr struct {
	// Name is the relation name.
	Name string
	// Alias is the key the relation is loaded under. Defaults to Name.
	Alias string
	// Filters are named filters applied to the related rows.
	Filters []string
	// Recursive marks a node that repeats itself under its own name.
	// Levels bounds the repetition, 0 meaning as deep as MaxDepth allows.
	Recursive bool
	Levels    int
	// Select lists the columns requested at this node. Nil selects all
	// columns of the table.
	Select   []string
	Children []*Expr
}

// Key returns the alias of the node, or its name when no alias was given.
func (e *Expr) Key() string {
	if e.Alias != "" {
		return e.Alias
	}
	return e.Name
}

// Child returns the child loaded under the given key, or nil.
func (e *Expr) Child(key string) *Expr {
	for _, c := range e.Children {
		if c.Key() == key {
			return c
		}
	}
	return nil
}

// Add appends child nodes and returns e.
func (e *Expr) Add(children ...*Expr) *Expr {
	e.Children = append(e.Children, children...)
	return e
}

// Rel returns a node for the given relation.
func Rel(name string, children ...*Expr) *Expr {
	return &Expr{Name: name, Children: children}
}

// Root returns a root node holding the given children.
func Root(children ...*Expr) *Expr {
	return &Expr{Children: children}
}

// Depth returns the nesting depth of the expression, counting bounded
// recursion at its full length.
func (e *Expr) Depth() int {
	d := 0
	for _, c := range e.Children {
		d = max(d, c.Depth())
	}
	if e.Recursive {
		n := e.Levels
		if n == 0 {
			n = MaxDepth
		}
		d += n - 1
	}
	if e.Name != "" {
		d++
	}
	return d
}

// Expand returns a copy of the expression with recursion unrolled into
// plain nodes. It fails with ErrRecursionDepth if the unrolled tree nests
// deeper than MaxDepth.
func (e *Expr) Expand() (*Expr, error) {
	return e.expand(0, e.Key())
}

func (e *Expr) expand(depth int, path string) (*Expr, error) {
	switch {
	case depth > MaxDepth:
		return nil, veloxgraph.Validationf(path, veloxgraph.ErrRecursionDepth, "more than %d levels", MaxDepth)
	case e.Recursive && e.Levels > MaxDepth:
		return nil, veloxgraph.Validationf(path, veloxgraph.ErrRecursionDepth, "^%d exceeds %d", e.Levels, MaxDepth)
	}
	out := &Expr{
		Name:    e.Name,
		Alias:   e.Alias,
		Filters: e.Filters,
		Select:  e.Select,
	}
	for _, c := range e.Children {
		cc, err := c.expand(depth+1, joinPath(path, c.Key()))
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, cc)
	}
	if !e.Recursive {
		return out, nil
	}
	n := e.Levels
	if n == 0 {
		// Unbounded recursion fills the remaining levels.
		n = MaxDepth - depth + 1
	}
	if n > 1 {
		next := &Expr{Name: e.Name, Filters: e.Filters, Select: e.Select, Recursive: true, Levels: n - 1}
		cc, err := next.expand(depth+1, joinPath(path, e.Name))
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, cc)
	}
	return out, nil
}

// String returns the canonical text of the expression.
func (e *Expr) String() string {
	var b strings.Builder
	if e.Name == "" {
		writeChildren(&b, e.Children)
		return b.String()
	}
	e.write(&b)
	return b.String()
}

func (e *Expr) write(b *strings.Builder) {
	b.WriteString(e.Name)
	if e.Alias != "" && e.Alias != e.Name {
		b.WriteString(" as ")
		b.WriteString(e.Alias)
	}
	if len(e.Filters) > 0 {
		b.WriteByte('(')
		b.WriteString(strings.Join(e.Filters, ", "))
		b.WriteByte(')')
	}
	switch {
	case e.Recursive:
		b.WriteString(".^")
		if e.Levels > 0 {
			b.WriteString(strconv.Itoa(e.Levels))
		}
	case len(e.Children) > 0:
		b.WriteByte('.')
		writeChildren(b, e.Children)
	}
}

func writeChildren(b *strings.Builder, children []*Expr) {
	if len(children) == 1 {
		children[0].write(b)
		return
	}
	b.WriteByte('[')
	for i, c := range children {
		if i > 0 {
			b.WriteString(", ")
		}
		c.write(b)
	}
	b.WriteByte(']')
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
