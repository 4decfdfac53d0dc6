package main

import (
	"slices"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/veloxgraph/dialect/sql/sqlgraph"
	"github.com/syssam/veloxgraph/schema"
)

func (c *cli) columnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns [table...]",
		Short: "Print the column metadata the query builder uses",
		Long: "Loads the columns of the given tables, or of every table the schema declares, through the " +
			"column store and prints them as YAML. With a configured cache or snapshot this also warms it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			tables := args
			if len(tables) == 0 {
				tables = schemaTables(s.schema)
			}
			if err := s.store.Prefetch(ctx, tables...); err != nil {
				return err
			}
			infos := make([]*sqlgraph.TableInfo, 0, len(tables))
			for _, t := range tables {
				info, err := s.store.Columns(ctx, t)
				if err != nil {
					return err
				}
				infos = append(infos, info)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(infos); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// schemaTables returns the sorted tables of all types and join tables.
func schemaTables(s *schema.Schema) []string {
	var tables []string
	for _, t := range s.Types {
		tables = append(tables, t.Table)
		for _, r := range t.Relations() {
			if r.Through != nil {
				tables = append(tables, r.Through.Table)
			}
		}
	}
	tables = lo.Uniq(tables)
	slices.Sort(tables)
	return tables
}
