package main

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cobra"

	"github.com/syssam/veloxgraph/dialect/sql"
	"github.com/syssam/veloxgraph/dialect/sql/sqlgraph"
	"github.com/syssam/veloxgraph/eager"
	"github.com/syssam/veloxgraph/entity"
	"github.com/syssam/veloxgraph/schema"
)

type queryOptions struct {
	graphql  string
	minimize bool
	where    []string
	match    string
}

func (c *cli) queryCmd() *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "query <type> [expression]",
		Short: "Load objects with their relations in one statement",
		Long: "Loads all objects of the given type together with the relations of an eager expression, " +
			"e.g. '[pets, children.^2]', using a single joined statement, and prints them as JSON. " +
			"Named filters referenced by the expression come from the config file.",
		Example: "  veloxgraph query Person '[pets(dogs), parent]' --where name=Jennifer\n" +
			"  veloxgraph query Person --graphql '{ persons { name pets { name } } }' --match 'len(pets) > 1'",
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
			e, err := opts.expr(args[1:])
			if err != nil {
				return err
			}
			jopts := []sqlgraph.JoinOption{
				sqlgraph.WithFilters(s.cfg.selectors()),
				sqlgraph.WithJoinLogger(s.log),
			}
			if opts.minimize {
				jopts = append(jopts, sqlgraph.WithMinimize())
			}
			b := sqlgraph.NewRelationJoinBuilder(typ, e, s.store, jopts...)
			sel, err := rootSelector(s.cfg.Dialect, typ, opts.where)
			if err != nil {
				return err
			}
			objs, err := sqlgraph.EagerQuery(ctx, s.drv, b, sel)
			if err != nil {
				return err
			}
			if opts.match != "" {
				if objs, err = match(objs, opts.match); err != nil {
					return err
				}
			}
			s.log.Debug("query done", "type", typ.Name, "expr", e.String(), "paths", len(b.Paths()), "objects", len(objs))
			return writeJSON(cmd.OutOrStdout(), objs)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.graphql, "graphql", "", "GraphQL selection set to load instead of an expression (@file reads a file)")
	flags.BoolVar(&opts.minimize, "minimize", false, "use short table aliases")
	flags.StringArrayVar(&opts.where, "where", nil, "column=value condition on the root objects (repeatable)")
	flags.StringVar(&opts.match, "match", "", "expr-lang condition the returned objects must satisfy")
	return cmd
}

func (o *queryOptions) expr(args []string) (*eager.Expr, error) {
	switch {
	case o.graphql != "" && len(args) > 0:
		return nil, errors.New("an expression and --graphql are mutually exclusive")
	case o.graphql != "":
		src := o.graphql
		if path, ok := strings.CutPrefix(src, "@"); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			src = string(data)
		}
		return eager.ParseGraphQL(src)
	case len(args) > 0:
		return eager.Parse(args[0])
	default:
		return eager.Root(), nil
	}
}

// rootSelector returns the selector of the root table, filtered by the
// column=value conditions and ordered by identifier.
func rootSelector(d string, typ *schema.Type, where []string) (*sql.Selector, error) {
	t := sql.Dialect(d).Table(typ.Table)
	sel := sql.Dialect(d).Select().From(t)
	for _, w := range where {
		col, v, ok := strings.Cut(w, "=")
		if !ok {
			return nil, fmt.Errorf("--where %q: expected column=value", w)
		}
		if !typ.HasColumn(col) {
			return nil, fmt.Errorf("--where %q: type %s has no column %q", w, typ.Name, col)
		}
		sel.Where(sql.EQ(t.C(col), v))
	}
	for _, c := range typ.IDColumns {
		sel.OrderBy(t.C(c))
	}
	return sel, nil
}

// match keeps the objects for which the expr-lang program returns true.
// Fields, extras and relations of an object are the program variables.
func match(objs []*entity.Object, src string) ([]*entity.Object, error) {
	program, err := expr.Compile(src, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("--match: %w", err)
	}
	var out []*entity.Object
	for _, o := range objs {
		ok, err := run(program, o)
		if err != nil {
			return nil, fmt.Errorf("--match: %w", err)
		}
		if ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func run(program *vm.Program, o *entity.Object) (bool, error) {
	v, err := expr.Run(program, objectEnv(o))
	if err != nil {
		return false, err
	}
	ok, isBool := v.(bool)
	if !isBool {
		return false, fmt.Errorf("expected bool, got %T", v)
	}
	return ok, nil
}

func objectEnv(o *entity.Object) map[string]any {
	env := maps.Clone(o.Fields)
	if env == nil {
		env = make(map[string]any)
	}
	maps.Copy(env, o.Extras)
	for k, v := range o.One {
		if v == nil {
			env[k] = nil
			continue
		}
		env[k] = objectEnv(v)
	}
	for k, vs := range o.Many {
		list := make([]any, len(vs))
		for i, v := range vs {
			list[i] = objectEnv(v)
		}
		env[k] = list
	}
	return env
}
