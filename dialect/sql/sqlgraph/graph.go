// Package sqlgraph persists object graphs in foreign-key order and loads
// them back with a single joined statement.
package sqlgraph

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/syssam/veloxgraph"
	"github.com/syssam/veloxgraph/eager"
	"github.com/syssam/veloxgraph/entity"
	"github.com/syssam/veloxgraph/schema"
)

// Node is an insertable object of a DependencyGraph.
type Node struct {
	Index  int
	UID    string
	Type   *schema.Type
	Object *entity.Object
	// Refs are the bare references in the graph that resolve to this node.
	Refs []*entity.Object

	needs    []int // node indexes
	neededBy []int // edge indexes
}

// Needs returns the indexes of the nodes that must be inserted first.
func (n *Node) Needs() []int {
	return n.needs
}

// Edge records that the foreign-key columns of the dependent node take
// the key values of the target node once the target is inserted.
type Edge struct {
	Dependent  int
	Target     int
	Relation   *schema.Relation
	FKColumns  []string
	KeyColumns []string
}

// Connection is a join-table row to synthesize once both ends exist.
type Connection struct {
	Owner    int
	Related  int
	Relation *schema.Relation
	// Extras holds the join-table extras carried by the related object.
	Extras map[string]any
}

// DependencyGraph is the node and edge structure of an object graph.
// Nodes are stored in an arena and referenced by index.
type DependencyGraph struct {
	Root        *schema.Type
	Roots       []*entity.Object
	Nodes       []*Node
	Edges       []*Edge
	Connections []*Connection

	uids   map[string]int
	byObj  map[*entity.Object]int
	refs   []*pendingRef
	log    *slog.Logger
	allow  *eager.Expr
	others []*entity.Object // objects that are not nodes, such as refs
}

// pendingRef is a reference object met during the traversal. Refs are
// resolved after the whole graph was visited, so they may point forward.
type pendingRef struct {
	obj    *entity.Object
	path   string
	parent int
	rel    *schema.Relation
}

type (
	// GraphOption configures BuildGraph.
	GraphOption func(*graphConfig)
	graphConfig struct {
		allowed *eager.Expr
		log     *slog.Logger
	}
)

// WithAllowed restricts the relations an object graph may contain. A
// relation present in the graph but not named by the expression fails
// the build.
func WithAllowed(e *eager.Expr) GraphOption {
	return func(c *graphConfig) {
		c.allowed = e
	}
}

// WithGraphLogger sets the logger used while building the graph.
func WithGraphLogger(l *slog.Logger) GraphOption {
	return func(c *graphConfig) {
		c.log = l
	}
}

// BuildGraph builds the dependency graph of the given root objects.
//
//	g, err := sqlgraph.BuildGraph(s.Type("Person"), objs, sqlgraph.WithAllowed(eager.MustParse("[pets, movies]")))
func BuildGraph(root *schema.Type, objs []*entity.Object, opts ...GraphOption) (*DependencyGraph, error) {
	cfg := &graphConfig{log: discardLogger}
	for _, opt := range opts {
		opt(cfg)
	}
	g := &DependencyGraph{
		Root:  root,
		Roots: objs,
		uids:  make(map[string]int),
		byObj: make(map[*entity.Object]int),
		log:   cfg.log,
	}
	if cfg.allowed != nil {
		allow, err := cfg.allowed.Expand()
		if err != nil {
			return nil, err
		}
		if err := checkRelations(root, allow, ""); err != nil {
			return nil, err
		}
		g.allow = allow
	}
	for i, o := range objs {
		if _, err := g.visit(root, o, fmt.Sprintf("%s[%d]", root.Name, i), g.allow, -1, nil); err != nil {
			return nil, err
		}
	}
	if err := g.resolveRefs(); err != nil {
		return nil, err
	}
	if err := g.checkCycles(); err != nil {
		return nil, err
	}
	g.log.Debug("sqlgraph: dependency graph built",
		"type", root.Name,
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"connections", len(g.Connections),
	)
	return g, nil
}

// checkRelations fails if the expression names a relation the type does
// not declare.
func checkRelations(t *schema.Type, e *eager.Expr, path string) error {
	for _, c := range e.Children {
		p := joinPath(path, c.Name)
		r := t.Relation(c.Name)
		if r == nil {
			return veloxgraph.Validationf(p, veloxgraph.ErrUnknownRelation, "type %s", t.Name)
		}
		if err := checkRelations(r.Related, c, p); err != nil {
			return err
		}
	}
	return nil
}

// visit adds o and everything reachable from it. parent is the node
// index o was reached from, or -1 for roots.
func (g *DependencyGraph) visit(t *schema.Type, o *entity.Object, path string, allow *eager.Expr, parent int, rel *schema.Relation) (int, error) {
	if o == nil {
		return -1, nil
	}
	if o.Ref != "" {
		if len(o.Relations()) > 0 {
			return -1, veloxgraph.NewValidationError(path, fmt.Errorf("%w: reference %q carries relations", veloxgraph.ErrUnresolvedRef, o.Ref))
		}
		g.refs = append(g.refs, &pendingRef{obj: o, path: path, parent: parent, rel: rel})
		g.others = append(g.others, o)
		return -1, nil
	}
	if idx, ok := g.byObj[o]; ok {
		if parent >= 0 {
			g.link(parent, idx, rel, o)
		}
		return idx, nil
	}
	uid := o.UID
	if uid == "" {
		uid = uuid.NewString()
	} else if _, ok := g.uids[uid]; ok {
		return -1, veloxgraph.Validationf(path, veloxgraph.ErrDuplicateUID, "%q", uid)
	}
	n := &Node{Index: len(g.Nodes), UID: uid, Type: t, Object: o}
	g.Nodes = append(g.Nodes, n)
	g.uids[uid] = n.Index
	g.byObj[o] = n.Index
	if parent >= 0 {
		g.link(parent, n.Index, rel, o)
	}
	for _, name := range o.Relations() {
		p := path + "." + name
		r := t.Relation(name)
		if r == nil {
			return -1, veloxgraph.Validationf(p, veloxgraph.ErrUnknownRelation, "type %s", t.Name)
		}
		var sub *eager.Expr
		if allow != nil {
			if sub = childByName(allow, name); sub == nil {
				return -1, veloxgraph.Validationf(p, veloxgraph.ErrUnallowedRelation, "not in %s", g.allow)
			}
		}
		if c, ok := o.One[name]; ok {
			if _, err := g.visit(r.Related, c, p, sub, n.Index, r); err != nil {
				return -1, err
			}
			continue
		}
		for i, c := range o.Many[name] {
			if _, err := g.visit(r.Related, c, fmt.Sprintf("%s[%d]", p, i), sub, n.Index, r); err != nil {
				return -1, err
			}
		}
	}
	return n.Index, nil
}

// link connects the owner node to the related node through r. The
// related object carries the join-table extras of through relations.
func (g *DependencyGraph) link(owner, related int, r *schema.Relation, via *entity.Object) {
	switch {
	case r.Rel.Through():
		g.Connections = append(g.Connections, &Connection{Owner: owner, Related: related, Relation: r, Extras: via.Extras})
	case r.OwnerHoldsFK():
		g.addEdge(&Edge{Dependent: owner, Target: related, Relation: r, FKColumns: r.OwnerColumns, KeyColumns: r.RelatedColumns})
	default:
		g.addEdge(&Edge{Dependent: related, Target: owner, Relation: r, FKColumns: r.RelatedColumns, KeyColumns: r.OwnerColumns})
	}
}

func (g *DependencyGraph) addEdge(e *Edge) {
	idx := len(g.Edges)
	g.Edges = append(g.Edges, e)
	dep, target := g.Nodes[e.Dependent], g.Nodes[e.Target]
	target.neededBy = append(target.neededBy, idx)
	for _, n := range dep.needs {
		if n == e.Target {
			return
		}
	}
	dep.needs = append(dep.needs, e.Target)
}

func (g *DependencyGraph) resolveRefs() error {
	for _, ref := range g.refs {
		idx, ok := g.uids[ref.obj.Ref]
		if !ok {
			return veloxgraph.Validationf(ref.path, veloxgraph.ErrUnresolvedRef, "%q", ref.obj.Ref)
		}
		n := g.Nodes[idx]
		if ref.rel != nil && ref.rel.Related != n.Type {
			return veloxgraph.Validationf(ref.path, veloxgraph.ErrUnresolvedRef, "%q is a %s, want %s", ref.obj.Ref, n.Type.Name, ref.rel.Related.Name)
		}
		n.Refs = append(n.Refs, ref.obj)
		if ref.parent >= 0 {
			g.link(ref.parent, idx, ref.rel, ref.obj)
		}
	}
	return nil
}

// checkCycles fails if the need edges contain a cycle.
func (g *DependencyGraph) checkCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(g.Nodes))
	var visit func(int) error
	visit = func(i int) error {
		switch state[i] {
		case visiting:
			return veloxgraph.Validationf(g.Nodes[i].Type.Name, veloxgraph.ErrCyclicGraph, "through node %s", g.Nodes[i].UID)
		case done:
			return nil
		}
		state[i] = visiting
		for _, n := range g.Nodes[i].needs {
			if err := visit(n); err != nil {
				return err
			}
		}
		state[i] = done
		return nil
	}
	for i := range g.Nodes {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

// Node returns the node with the given uid.
func (g *DependencyGraph) Node(uid string) (*Node, bool) {
	idx, ok := g.uids[uid]
	if !ok {
		return nil, false
	}
	return g.Nodes[idx], true
}

func childByName(e *eager.Expr, name string) *eager.Expr {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
