package sql

// Predicate is a where predicate.
type Predicate struct {
	Builder
	or  bool
	fns []func(*Builder)
}

// P creates a new predicate.
//
//	P().EQ("name", "a8m").And().EQ("age", 30)
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

// Append appends a new function to the predicate callbacks.
// The callback list are executed on call to Query.
func (p *Predicate) Append(f func(*Builder)) *Predicate {
	p.fns = append(p.fns, f)
	return p
}

// Query returns query representation of a predicate.
func (p *Predicate) Query() (string, []any) {
	b := p.Builder.clone()
	for _, f := range p.fns {
		f(&b)
	}
	p.Builder.total = b.total
	p.Builder.errs = b.errs
	return b.String(), b.args
}

// EQ returns a "=" predicate.
func EQ(col string, value any) *Predicate {
	return P().EQ(col, value)
}

// EQ appends a "=" predicate.
func (p *Predicate) EQ(col string, arg any) *Predicate {
	return p.Append(func(b *Builder) {
		b.Ident(col).WriteString(" = ").Arg(arg)
	})
}

// NEQ returns a "<>" predicate.
func NEQ(col string, value any) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col).WriteString(" <> ").Arg(value)
	})
}

// GT returns a ">" predicate.
func GT(col string, value any) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col).WriteString(" > ").Arg(value)
	})
}

// GTE returns a ">=" predicate.
func GTE(col string, value any) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col).WriteString(" >= ").Arg(value)
	})
}

// LT returns a "<" predicate.
func LT(col string, value any) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col).WriteString(" < ").Arg(value)
	})
}

// LTE returns a "<=" predicate.
func LTE(col string, value any) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col).WriteString(" <= ").Arg(value)
	})
}

// In returns the `IN` predicate. An empty list renders as FALSE.
func In(col string, args ...any) *Predicate {
	return P().Append(func(b *Builder) {
		if len(args) == 0 {
			b.WriteString("FALSE")
			return
		}
		b.Ident(col).WriteString(" IN ")
		b.Wrap(func(b *Builder) {
			b.Args(args...)
		})
	})
}

// HasPrefix is a helper predicate that checks prefix using the LIKE predicate.
func HasPrefix(col, prefix string) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col).WriteString(" LIKE ").Arg(prefix + "%")
	})
}

// IsNull returns the `IS NULL` predicate.
func IsNull(col string) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col).WriteString(" IS NULL")
	})
}

// NotNull returns the `IS NOT NULL` predicate.
func NotNull(col string) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col).WriteString(" IS NOT NULL")
	})
}

// ColumnsEQ returns a "=" predicate between two columns.
func ColumnsEQ(col1, col2 string) *Predicate {
	return P().Append(func(b *Builder) {
		b.Ident(col1).WriteString(" = ").Ident(col2)
	})
}

// Not wraps the given predicate with the not predicate.
//
//	Not(Or(EQ("name", "foo"), EQ("name", "bar")))
func Not(pred *Predicate) *Predicate {
	return P().Append(func(b *Builder) {
		b.WriteString("NOT ")
		b.Wrap(func(b *Builder) {
			b.Join(pred)
		})
	})
}

// And combines all given predicates with AND between them.
// Nil predicates are skipped.
func And(preds ...*Predicate) *Predicate {
	preds = compact(preds)
	if len(preds) == 1 {
		return preds[0]
	}
	return P().Append(func(b *Builder) {
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" AND ")
			}
			if p.or {
				b.Wrap(func(b *Builder) { b.Join(p) })
			} else {
				b.Join(p)
			}
		}
	})
}

// Or combines all given predicates with OR between them.
func Or(preds ...*Predicate) *Predicate {
	preds = compact(preds)
	if len(preds) == 1 {
		return preds[0]
	}
	p := P().Append(func(b *Builder) {
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" OR ")
			}
			b.Join(p)
		}
	})
	p.or = true
	return p
}

func compact(preds []*Predicate) []*Predicate {
	out := preds[:0:0]
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
