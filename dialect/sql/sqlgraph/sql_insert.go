package sqlgraph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/syssam/veloxgraph"
	"github.com/syssam/veloxgraph/dialect"
	"github.com/syssam/veloxgraph/dialect/sql"
	"github.com/syssam/veloxgraph/entity"
)

// SQLInsert returns an InsertFunc writing rows with multi-row INSERT
// statements. Rows are grouped by the set of columns they carry.
// Generated identifiers are read with RETURNING on Postgres and SQLite,
// and from the last insert id on MySQL. Constraint violations are returned
// as veloxgraph.ConstraintError.
func SQLInsert(name string, eq dialect.ExecQuerier) InsertFunc {
	return func(ctx context.Context, ins *TableInsertion) ([]entity.ID, error) {
		ids := make([]entity.ID, len(ins.Objects))
		for _, g := range groupRows(ins.Objects) {
			var idColumns []string
			if !ins.IsJoinTable && ins.Type != nil && !g.hasIDs(ins.Type.IDColumns) {
				idColumns = ins.Type.IDColumns
			}
			gids, err := insertGroup(ctx, name, eq, ins.Table, g, idColumns)
			if err != nil {
				return nil, constraintError(ins.Table, err)
			}
			for i, idx := range g.indexes {
				if gids != nil {
					ids[idx] = gids[i]
				} else if ins.Type != nil {
					ids[idx], _ = ins.Objects[idx].IDOf(ins.Type.IDColumns)
				}
			}
		}
		if ins.IsJoinTable {
			return nil, nil
		}
		return ids, nil
	}
}

// rowGroup is a set of rows sharing the same columns.
type rowGroup struct {
	columns []string
	indexes []int
	rows    []*entity.Object
}

func (g *rowGroup) hasIDs(columns []string) bool {
	for _, c := range columns {
		if !slices.Contains(g.columns, c) {
			return false
		}
	}
	return true
}

func groupRows(objs []*entity.Object) []*rowGroup {
	var (
		groups []*rowGroup
		byKey  = make(map[string]*rowGroup)
	)
	for i, o := range objs {
		columns := slices.Sorted(maps.Keys(o.Fields))
		key := strings.Join(columns, ",")
		g, ok := byKey[key]
		if !ok {
			g = &rowGroup{columns: columns}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.indexes = append(g.indexes, i)
		g.rows = append(g.rows, o)
	}
	return groups
}

// insertGroup inserts the rows of g. When idColumns is not empty, it
// returns the generated identifiers in row order.
func insertGroup(ctx context.Context, name string, eq dialect.ExecQuerier, table string, g *rowGroup, idColumns []string) ([]entity.ID, error) {
	if len(g.columns) == 0 {
		// Rows without columns use DEFAULT VALUES, which takes one row at a time.
		var ids []entity.ID
		for range g.rows {
			id, err := insertRows(ctx, name, eq, sql.Dialect(name).Insert(table).Default(), 1, idColumns)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id...)
		}
		return ids, nil
	}
	insert := sql.Dialect(name).Insert(table).Columns(g.columns...)
	for _, o := range g.rows {
		values := make([]any, len(g.columns))
		for i, c := range g.columns {
			v, err := columnValue(o.Fields[c])
			if err != nil {
				return nil, fmt.Errorf("sqlgraph: encoding %s.%s: %w", table, c, err)
			}
			values[i] = v
		}
		insert.Values(values...)
	}
	return insertRows(ctx, name, eq, insert, len(g.rows), idColumns)
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// columnValue encodes JSON documents given as objects or arrays.
func columnValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}

func insertRows(ctx context.Context, name string, eq dialect.ExecQuerier, insert *sql.InsertBuilder, n int, idColumns []string) ([]entity.ID, error) {
	if len(idColumns) > 0 && name != dialect.MySQL {
		insert.Returning(idColumns...)
	}
	query, args := insert.Query()
	if err := insert.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(idColumns) == 0:
		return nil, eq.Exec(ctx, query, args, nil)
	case name == dialect.MySQL:
		if len(idColumns) > 1 {
			return nil, fmt.Errorf("sqlgraph: composite identifier %v must be set before insert on mysql", idColumns)
		}
		var res sql.Result
		if err := eq.Exec(ctx, query, args, &res); err != nil {
			return nil, err
		}
		first, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("sqlgraph: last insert id: %w", err)
		}
		ids := make([]entity.ID, n)
		for i := range ids {
			ids[i] = entity.ID{first + int64(i)}
		}
		return ids, nil
	default:
		rows := &sql.Rows{}
		if err := eq.Query(ctx, query, args, rows); err != nil {
			return nil, err
		}
		defer rows.Close()
		returned, err := sql.ScanMaps(rows)
		if err != nil {
			return nil, err
		}
		if len(returned) != n {
			return nil, fmt.Errorf("sqlgraph: insert returned %d rows for %d values", len(returned), n)
		}
		ids := make([]entity.ID, n)
		for i, row := range returned {
			ids[i] = make(entity.ID, len(idColumns))
			for k, c := range idColumns {
				ids[i][k] = row[c]
			}
		}
		return ids, nil
	}
}

// InsertGraph inserts the graph inside a transaction of drv. The
// transaction is rolled back if any insert fails. Statements on the
// transaction run one at a time.
func InsertGraph(ctx context.Context, drv dialect.Driver, g *DependencyGraph, opts ...InsertOption) ([]*entity.Object, error) {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: starting a transaction: %w", err)
	}
	objs, err := NewGraphInserter(g, append(opts, WithSequential())...).Execute(ctx, SQLInsert(drv.Dialect(), tx))
	if err != nil {
		return nil, rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlgraph: committing transaction: %w", err)
	}
	return objs, nil
}

// rollback calls tx.Rollback and wraps the given error with the rollback
// error if occurred.
func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		return &veloxgraph.RollbackError{Err: errors.Join(err, rerr)}
	}
	return err
}
