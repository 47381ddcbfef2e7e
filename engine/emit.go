package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/viktorlott/enum-shape/diag"
	"github.com/viktorlott/enum-shape/dispatch"
	"github.com/viktorlott/enum-shape/syntax"
)

// Output is the expansion of one enum.
type Output struct {
	// Subject is the enum with the propagated predicates appended to its
	// where clause.
	Subject *syntax.Subject

	// Stubs are assertion items emitted before the enum when assertion
	// stubs are enabled.
	Stubs []string

	// Impls are the rendered dispatch impls, in blueprint order.
	Impls []string

	// Bounds are the propagated predicates, whichever place they ended up in.
	Bounds []syntax.WherePredicate
}

// String renders the stubs, the enum and its impls as one source fragment.
func (o *Output) String() string {
	var b strings.Builder
	for _, s := range o.Stubs {
		b.WriteString(s)
	}
	b.WriteString(o.Subject.Format())
	for _, impl := range o.Impls {
		b.WriteString("\n")
		b.WriteString(impl)
	}
	return b.String()
}

// Emit propagates the pattern's bounds onto the concrete types bound in the
// polymap and renders every blueprint. It returns a *diag.Error holding every
// diagnostic recorded during assembly and emission, if any.
func (a *Assembled) Emit() (*Output, error) {
	bounds := a.propagate()
	if err := a.stash.Err(); err != nil {
		a.logger.Debug("emit failed", slog.Int("errors", a.stash.Len()))
		return nil, err
	}

	subject := cloneSubject(a.Subject)
	out := &Output{Subject: subject, Bounds: bounds}

	where := bounds
	if a.stubs {
		where = nil
		params := subject.Generics.Names()
		var asserts []syntax.WherePredicate
		for _, p := range bounds {
			if mentions(p, params) {
				where = append(where, p)
			} else {
				asserts = append(asserts, p)
			}
		}
		out.Stubs = stubs(subject, asserts)
	}
	if len(where) > 0 {
		if subject.Generics.Where == nil {
			subject.Generics.Where = &syntax.Clause{Pos: subject.Ident.Pos}
		}
		subject.Generics.Where.Predicates = append(subject.Generics.Where.Predicates, where...)
	}

	// Impls carry the enum's own generics and where clause.
	a.Blueprints.Each(func(bp *dispatch.Blueprint) {
		out.Impls = append(out.Impls, bp.Render(a.Subject))
	})

	a.logger.Debug("emitted",
		slog.String("enum", subject.Ident.Text),
		slog.Int("bounds", len(bounds)),
		slog.Int("stubs", len(out.Stubs)),
		slog.Int("impls", len(out.Impls)))
	return out, nil
}

// propagate turns every `T: Bounds` of the pattern clause, plus the synthetic
// impl predicates, into `C: Bounds` for each concrete C bound to T. Dispatch
// markers are dropped, a `for<...>` binder is kept, and each predicate is
// positioned at C. Predicates
// already present on the enum, or produced twice, are emitted once.
func (a *Assembled) propagate() []syntax.WherePredicate {
	var preds []syntax.WherePredicate
	if a.Expr.Clause != nil {
		preds = append(preds, a.Expr.Clause.Predicates...)
	}
	preds = append(preds, a.Predicates...)

	seen := make(map[string]bool)
	if w := a.Subject.Generics.Where; w != nil {
		for _, p := range w.Predicates {
			seen[p.String()] = true
		}
	}

	var out []syntax.WherePredicate
	for _, pred := range preds {
		switch pred.Kind {
		case syntax.PredicateLifetime:
			a.stash.Add(diag.CodeLifetimePredicate, pred.Pos(), "lifetime predicates are unsupported")
			continue
		case syntax.PredicateUnsupported:
			a.stash.Add(diag.CodeUnsupportedPredicate, pred.Pos(), "unsupported where predicate `%s`", pred)
			continue
		}
		if !a.validateBounds(pred.Bounds) {
			continue
		}
		bounds := stripDispatch(pred.Bounds)
		if len(bounds) == 0 || pred.BoundedTy == nil {
			continue
		}
		for _, id := range a.PolyMap.Get(pred.BoundedTy.ID()) {
			ty := a.PolyMap.Type(id)
			np := syntax.NewTypePredicate(ty, bounds, ty.Pos()).WithBinder(pred.Binder())
			if key := np.String(); !seen[key] {
				seen[key] = true
				out = append(out, np)
			}
		}
	}
	return out
}

func stripDispatch(bounds []syntax.TypeBound) []syntax.TypeBound {
	out := make([]syntax.TypeBound, 0, len(bounds))
	for _, b := range bounds {
		if b.Modifier == syntax.ModifierDispatch {
			b.Tokens = b.Unmodified()
			b.Modifier = syntax.ModifierNone
		}
		out = append(out, b)
	}
	return out
}

// mentions reports whether the bounded type of p names one of params.
func mentions(p syntax.WherePredicate, params []string) bool {
	if p.BoundedTy == nil {
		return false
	}
	for _, t := range p.BoundedTy.Tokens {
		if (t.Kind == syntax.Ident || t.Kind == syntax.Lifetime) && slices.Contains(params, t.Text) {
			return true
		}
	}
	return false
}

// stubs renders one `struct _Assert_Enum_N where C: Bounds;` per predicate and
// records the checked predicates as doc comments on the enum.
func stubs(subject *syntax.Subject, preds []syntax.WherePredicate) []string {
	if len(preds) == 0 {
		return nil
	}
	pos := subject.Ident.Pos
	subject.Attrs = append(subject.Attrs, syntax.Attribute{Tokens: []syntax.Token{
		syntax.Synthetic(syntax.DocComment, "/// Asserted bounds:", pos),
	}})
	out := make([]string, len(preds))
	for i, p := range preds {
		out[i] = fmt.Sprintf("#[allow(non_camel_case_types, dead_code)]\nstruct _Assert_%s_%d where %s;\n", subject.Ident.Text, i, p)
		subject.Attrs = append(subject.Attrs, syntax.Attribute{Tokens: []syntax.Token{
			syntax.Synthetic(syntax.DocComment, "/// - `"+p.String()+"`", pos),
		}})
	}
	return out
}

func cloneSubject(s *syntax.Subject) *syntax.Subject {
	c := *s
	c.Attrs = slices.Clone(s.Attrs)
	if s.Generics.Where != nil {
		w := *s.Generics.Where
		w.Predicates = slices.Clone(w.Predicates)
		c.Generics.Where = &w
	}
	return &c
}
