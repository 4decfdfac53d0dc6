package sqlgraph

import (
	"context"

	"github.com/syssam/veloxgraph"
	"github.com/syssam/veloxgraph/dialect"
	"github.com/syssam/veloxgraph/dialect/sql"
	"github.com/syssam/veloxgraph/entity"
)

// EagerQuery builds the joined statement of b on top of s, executes it
// and returns the reconstructed objects. Validation errors are returned
// as is, execution errors are wrapped in a veloxgraph.QueryError.
func EagerQuery(ctx context.Context, drv dialect.ExecQuerier, b *RelationJoinBuilder, s *sql.Selector) ([]*entity.Object, error) {
	if err := b.Build(ctx, s); err != nil {
		return nil, err
	}
	query, args := s.Query()
	if err := s.Err(); err != nil {
		return nil, veloxgraph.NewQueryError(b.root.Name, "build", err)
	}
	rows := &sql.Rows{}
	if err := drv.Query(ctx, query, args, rows); err != nil {
		return nil, veloxgraph.NewQueryError(b.root.Name, "query", err)
	}
	defer rows.Close()
	maps, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, veloxgraph.NewQueryError(b.root.Name, "scan", err)
	}
	return b.RowsToTree(maps)
}
