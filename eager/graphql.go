package eager

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseGraphQL converts the selection set of a GraphQL query into an
// expression. The query must select a single root field. Leaf fields become
// the column selection of their node, fields with a selection set become
// relations, GraphQL aliases become relation aliases and a "filter"
// argument names the filters of a relation.
//
//	eager.ParseGraphQL(`{
//	  persons {
//	    name
//	    kids: children(filter: [onlyAdults]) { name }
//	  }
//	}`)
func ParseGraphQL(query string) (*Expr, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query", Input: query})
	if err != nil {
		return nil, fmt.Errorf("eager: parse graphql: %w", err)
	}
	if len(doc.Operations) == 0 {
		return nil, errors.New("eager: parse graphql: no operation")
	}
	fields := collectFields(doc, doc.Operations[0].SelectionSet, nil)
	if len(fields) != 1 {
		return nil, fmt.Errorf("eager: parse graphql: expected one root field, got %d", len(fields))
	}
	root := Root()
	if err := fromSelection(doc, root, fields[0].SelectionSet); err != nil {
		return nil, err
	}
	return root, nil
}

func fromSelection(doc *ast.QueryDocument, e *Expr, set ast.SelectionSet) error {
	if e.Select == nil {
		e.Select = []string{}
	}
	for _, f := range collectFields(doc, set, nil) {
		switch {
		case f.Name == "__typename":
		case len(f.SelectionSet) == 0:
			if !lo.Contains(e.Select, f.Name) {
				e.Select = append(e.Select, f.Name)
			}
		default:
			key := lo.Ternary(f.Alias != "", f.Alias, f.Name)
			child := e.Child(key)
			if child == nil {
				child = &Expr{Name: f.Name, Alias: lo.Ternary(key != f.Name, key, "")}
				e.Children = append(e.Children, child)
			}
			filters, err := argFilters(f)
			if err != nil {
				return err
			}
			child.Filters = lo.Uniq(append(child.Filters, filters...))
			if err := fromSelection(doc, child, f.SelectionSet); err != nil {
				return err
			}
		}
	}
	return nil
}

func argFilters(f *ast.Field) ([]string, error) {
	arg := f.Arguments.ForName("filter")
	if arg == nil {
		return nil, nil
	}
	switch v := arg.Value; v.Kind {
	case ast.StringValue, ast.EnumValue:
		return []string{v.Raw}, nil
	case ast.ListValue:
		return lo.Map(v.Children, func(c *ast.ChildValue, _ int) string { return c.Value.Raw }), nil
	default:
		return nil, fmt.Errorf("eager: parse graphql: %s: filter must be a name or a list of names", f.Name)
	}
}

// collectFields flattens fragments into the list of selected fields.
func collectFields(doc *ast.QueryDocument, set ast.SelectionSet, seen map[string]bool) []*ast.Field {
	var fields []*ast.Field
	for _, s := range set {
		switch s := s.(type) {
		case *ast.Field:
			fields = append(fields, s)
		case *ast.InlineFragment:
			fields = append(fields, collectFields(doc, s.SelectionSet, seen)...)
		case *ast.FragmentSpread:
			if seen[s.Name] {
				continue
			}
			if def := doc.Fragments.ForName(s.Name); def != nil {
				if seen == nil {
					seen = make(map[string]bool)
				}
				seen[s.Name] = true
				fields = append(fields, collectFields(doc, def.SelectionSet, seen)...)
			}
		}
	}
	return fields
}
