package sqlgraph

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/veloxgraph"
	"github.com/syssam/veloxgraph/entity"
	"github.com/syssam/veloxgraph/schema"
)

// TableInsertion is a batch of rows destined for one table.
type TableInsertion struct {
	Table string
	// Type is the entity type of the table. It is nil for join tables.
	Type *schema.Type
	// Objects holds one row per object. Objects only carry the columns
	// to insert, never relations or synthetic identifiers.
	Objects []*entity.Object
	// IsInput reports, per object, if the row comes from the input graph
	// rather than being synthesized.
	IsInput     []bool
	IsJoinTable bool
}

// InsertFunc inserts the rows of one TableInsertion and returns the
// identifiers of the inserted rows in input order. It may return no
// identifiers when the rows already carry them, and always does so for
// join tables.
type InsertFunc func(ctx context.Context, ins *TableInsertion) ([]entity.ID, error)

// InsertOption configures a GraphInserter.
type InsertOption func(*GraphInserter)

// WithInsertLogger sets the logger of the inserter.
func WithInsertLogger(l *slog.Logger) InsertOption {
	return func(i *GraphInserter) {
		i.log = l
	}
}

// WithSequential runs the inserts of a batch one table at a time. It is
// required when the InsertFunc shares a single connection or transaction.
func WithSequential() InsertOption {
	return func(i *GraphInserter) {
		i.limit = 1
	}
}

// GraphInserter inserts the nodes of a DependencyGraph batch by batch,
// each batch holding the nodes whose dependencies were all inserted.
type GraphInserter struct {
	graph *DependencyGraph
	log   *slog.Logger
	limit int // concurrent tables per batch, -1 for no limit

	handled    []bool
	numHandled []int // handled needs per node
}

// NewGraphInserter returns an inserter for the given graph. An inserter
// executes once.
func NewGraphInserter(g *DependencyGraph, opts ...InsertOption) *GraphInserter {
	i := &GraphInserter{
		graph:      g,
		log:        discardLogger,
		limit:      -1,
		handled:    make([]bool, len(g.Nodes)),
		numHandled: make([]int, len(g.Nodes)),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Execute inserts the graph using insert and returns the root objects
// with their identifiers and foreign keys populated. The first failed
// insert aborts the operation. Rows inserted by earlier batches are
// left in place.
func (i *GraphInserter) Execute(ctx context.Context, insert InsertFunc) ([]*entity.Object, error) {
	for batch := 0; ; batch++ {
		nodes := i.eligible()
		if len(nodes) == 0 {
			break
		}
		if err := i.runBatch(ctx, batch, nodes, insert); err != nil {
			return nil, err
		}
	}
	for idx, ok := range i.handled {
		if !ok {
			n := i.graph.Nodes[idx]
			return nil, veloxgraph.Validationf(n.Type.Name, veloxgraph.ErrCyclicGraph, "node %s never became insertable", n.UID)
		}
	}
	if err := i.insertJoinRows(ctx, insert); err != nil {
		return nil, err
	}
	i.finalize()
	return i.graph.Roots, nil
}

// eligible returns the unhandled nodes whose needs are all handled.
func (i *GraphInserter) eligible() []*Node {
	var nodes []*Node
	for _, n := range i.graph.Nodes {
		if !i.handled[n.Index] && i.numHandled[n.Index] == len(n.needs) {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (i *GraphInserter) runBatch(ctx context.Context, batch int, nodes []*Node, insert InsertFunc) error {
	var (
		tables  []*TableInsertion
		members [][]*Node
		byTable = make(map[string]int)
	)
	for _, n := range nodes {
		idx, ok := byTable[n.Type.Table]
		if !ok {
			idx = len(tables)
			byTable[n.Type.Table] = idx
			tables = append(tables, &TableInsertion{Table: n.Type.Table, Type: n.Type})
			members = append(members, nil)
		}
		t := tables[idx]
		t.Objects = append(t.Objects, entity.New(maps.Clone(n.Object.Fields)))
		t.IsInput = append(t.IsInput, true)
		members[idx] = append(members[idx], n)
	}
	results := make([][]entity.ID, len(tables))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(i.limit)
	for idx, t := range tables {
		i.log.Debug("sqlgraph: insert batch", "batch", batch, "table", t.Table, "rows", len(t.Objects))
		grp.Go(func() error {
			ids, err := insert(gctx, t)
			if err != nil {
				return veloxgraph.NewMutationError(t.Table, "insert", constraintError(t.Table, err))
			}
			if len(ids) != 0 && len(ids) != len(t.Objects) {
				return veloxgraph.NewMutationError(t.Table, "insert", fmt.Errorf("sqlgraph: got %d identifiers for %d rows", len(ids), len(t.Objects)))
			}
			results[idx] = ids
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	for idx, ns := range members {
		ids := results[idx]
		for j, n := range ns {
			if len(ids) == 0 {
				continue
			}
			for k, c := range n.Type.IDColumns {
				if k < len(ids[j]) && ids[j][k] != nil {
					n.Object.Set(c, ids[j][k])
				}
			}
		}
	}
	for _, n := range nodes {
		if err := i.markHandled(n); err != nil {
			return err
		}
	}
	return nil
}

// markHandled writes the keys of n into every node depending on it. A
// dependent reaching n through several edges counts n as one handled need.
func (i *GraphInserter) markHandled(n *Node) error {
	i.handled[n.Index] = true
	counted := make(map[int]bool)
	for _, idx := range n.neededBy {
		e := i.graph.Edges[idx]
		dep := i.graph.Nodes[e.Dependent]
		for k, c := range e.KeyColumns {
			v, ok := n.Object.Fields[c]
			if !ok || v == nil {
				return veloxgraph.NewMutationError(n.Type.Table, "insert", fmt.Errorf("sqlgraph: column %q of node %s is not set after insert", c, n.UID))
			}
			dep.Object.Set(e.FKColumns[k], v)
		}
		if !counted[e.Dependent] {
			counted[e.Dependent] = true
			i.numHandled[e.Dependent]++
		}
	}
	return nil
}

// insertJoinRows synthesizes and inserts the join-table rows of all
// connections. Rows of the same join table are deduplicated by the union
// of the columns present in any of them.
func (i *GraphInserter) insertJoinRows(ctx context.Context, insert InsertFunc) error {
	var (
		tables  []*TableInsertion
		byTable = make(map[string]*TableInsertion)
	)
	for _, c := range i.graph.Connections {
		j := c.Relation.Through
		t, ok := byTable[j.Table]
		if !ok {
			t = &TableInsertion{Table: j.Table, IsJoinTable: true}
			byTable[j.Table] = t
			tables = append(tables, t)
		}
		row, err := i.joinRow(c)
		if err != nil {
			return err
		}
		t.Objects = append(t.Objects, row)
		t.IsInput = append(t.IsInput, false)
	}
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(i.limit)
	for _, t := range tables {
		dedupeRows(t)
		i.log.Debug("sqlgraph: insert join rows", "table", t.Table, "rows", len(t.Objects))
		grp.Go(func() error {
			if _, err := insert(gctx, t); err != nil {
				return veloxgraph.NewMutationError(t.Table, "insert join rows", constraintError(t.Table, err))
			}
			return nil
		})
	}
	return grp.Wait()
}

func (i *GraphInserter) joinRow(c *Connection) (*entity.Object, error) {
	r, j := c.Relation, c.Relation.Through
	owner, related := i.graph.Nodes[c.Owner], i.graph.Nodes[c.Related]
	row := entity.New(nil)
	for k, col := range r.OwnerColumns {
		v, ok := owner.Object.Fields[col]
		if !ok || v == nil {
			return nil, veloxgraph.NewMutationError(j.Table, "insert join rows", fmt.Errorf("sqlgraph: column %q of node %s is not set", col, owner.UID))
		}
		row.Set(j.OwnerColumns[k], v)
	}
	for k, col := range r.RelatedColumns {
		v, ok := related.Object.Fields[col]
		if !ok || v == nil {
			return nil, veloxgraph.NewMutationError(j.Table, "insert join rows", fmt.Errorf("sqlgraph: column %q of node %s is not set", col, related.UID))
		}
		row.Set(j.RelatedColumns[k], v)
	}
	for _, e := range j.Extras {
		if v, ok := c.Extras[e.Name]; ok {
			row.Set(e.Column, v)
		}
	}
	return row, nil
}

func dedupeRows(t *TableInsertion) {
	var keys []string
	for _, o := range t.Objects {
		for k := range o.Fields {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	var (
		seen  = make(map[string]bool)
		rows  = t.Objects[:0]
		input = t.IsInput[:0]
	)
	for idx, o := range t.Objects {
		var b strings.Builder
		for _, k := range keys {
			if v, ok := o.Fields[k]; ok {
				fmt.Fprintf(&b, "%s=%s;", k, entity.ID{v}.Key())
			} else {
				fmt.Fprintf(&b, "%s;", k)
			}
		}
		if seen[b.String()] {
			continue
		}
		seen[b.String()] = true
		rows = append(rows, o)
		input = append(input, t.IsInput[idx])
	}
	t.Objects, t.IsInput = rows, input
}

// finalize copies the fields of every node onto the references pointing
// to it and clears the synthetic identifiers of the graph.
func (i *GraphInserter) finalize() {
	for _, n := range i.graph.Nodes {
		for _, ref := range n.Refs {
			ref.CopyFields(n.Object)
		}
		n.Object.UID, n.Object.Ref = "", ""
	}
	for _, o := range i.graph.others {
		o.UID, o.Ref = "", ""
	}
}
