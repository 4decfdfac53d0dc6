package eager

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// exprLexer tokenizes relation expressions.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$]*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[\[\]().,^]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var exprParser = participle.MustBuild[listAST](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// listAST is either a bracketed list of nodes or a single node.
type listAST struct {
	List []*nodeAST `parser:"  '[' ( @@ ( ',' @@ )* ','? )? ']'"`
	Node *nodeAST   `parser:"| @@"`
}

type nodeAST struct {
	Name    string   `parser:"@Ident"`
	Alias   string   `parser:"( 'as' @Ident )?"`
	Filters []string `parser:"( '(' ( @Ident ( ',' @Ident )* )? ')' )?"`
	Next    *nextAST `parser:"( '.' @@ )?"`
}

type nextAST struct {
	Recurse *recurseAST `parser:"  @@"`
	List    *listAST    `parser:"| @@"`
}

type recurseAST struct {
	Caret  string `parser:"@'^'"`
	Levels int    `parser:"@Int?"`
}

// Parse parses a relation expression into a root node.
//
//	expr, err := eager.Parse("[pets(onlyDogs), children as kids.pets]")
func Parse(s string) (*Expr, error) {
	if strings.TrimSpace(s) == "" {
		return Root(), nil
	}
	ast, err := exprParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("eager: parse %q: %w", s, err)
	}
	return Root(ast.exprs()...), nil
}

// MustParse is like Parse but panics if the expression cannot be parsed.
func MustParse(s string) *Expr {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

func (l *listAST) exprs() []*Expr {
	if l.Node != nil {
		return []*Expr{l.Node.expr()}
	}
	exprs := make([]*Expr, 0, len(l.List))
	for _, n := range l.List {
		exprs = append(exprs, n.expr())
	}
	return exprs
}

func (n *nodeAST) expr() *Expr {
	e := &Expr{Name: n.Name, Alias: n.Alias, Filters: n.Filters}
	switch {
	case n.Next == nil:
	case n.Next.Recurse != nil:
		e.Recursive, e.Levels = true, n.Next.Recurse.Levels
	default:
		e.Children = n.Next.List.exprs()
	}
	return e
}
