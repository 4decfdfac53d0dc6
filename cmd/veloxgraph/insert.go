package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/veloxgraph/dialect/sql/sqlgraph"
	"github.com/syssam/veloxgraph/eager"
	"github.com/syssam/veloxgraph/entity"
)

func (c *cli) insertCmd() *cobra.Command {
	var allow string
	cmd := &cobra.Command{
		Use:   "insert <type> [file]",
		Short: "Insert a JSON object graph",
		Long: "Reads a JSON object or array of objects of the given type, inserts the whole graph in one " +
			"transaction and prints it with the generated identifiers. Objects may be named with \"#id\" and " +
			"referenced elsewhere in the graph with {\"#ref\": \"name\"}. Reads stdin when file is - or missing.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			typ, err := s.typ(args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}
			objs, err := entity.DecodeJSON(typ, data)
			if err != nil {
				return err
			}
			opts := []sqlgraph.GraphOption{sqlgraph.WithGraphLogger(s.log)}
			if allow != "" {
				expr, err := eager.Parse(allow)
				if err != nil {
					return fmt.Errorf("--allow: %w", err)
				}
				opts = append(opts, sqlgraph.WithAllowed(expr))
			}
			g, err := sqlgraph.BuildGraph(typ, objs, opts...)
			if err != nil {
				return err
			}
			out, err := sqlgraph.InsertGraph(ctx, s.drv, g, sqlgraph.WithInsertLogger(s.log))
			if err != nil {
				return err
			}
			s.log.Info("graph inserted", "type", typ.Name, "objects", len(g.Nodes), "roots", len(out))
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&allow, "allow", "", "eager expression limiting the relations the input may contain")
	return cmd
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(args[0])
}
