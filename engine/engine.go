// Package engine matches the variants of an enum against shape patterns,
// unifies pattern type variables with the concrete field types they meet,
// and emits the enum with its bounds made explicit plus one dispatch impl per
// dispatchable trait.
//
// The flow is New → Assemble → Emit:
//
//	asm := engine.New(expr, subject).WithRegistry(reg).Assemble()
//	out, err := asm.Emit()
//
// Diagnostics are collected during both steps and only reported by Emit.
package engine

import (
	"log/slog"
	"strings"

	"github.com/viktorlott/enum-shape/diag"
	"github.com/viktorlott/enum-shape/dispatch"
	"github.com/viktorlott/enum-shape/syntax"
)

// Engine holds the inputs of one expansion.
type Engine struct {
	expr    *syntax.PatternExpr
	subject *syntax.Subject
	reg     *dispatch.Registry
	logger  *slog.Logger
	stubs   bool
}

// New returns an engine for expr applied to subject.
func New(expr *syntax.PatternExpr, subject *syntax.Subject) *Engine {
	return &Engine{expr: expr, subject: subject}
}

// WithRegistry sets the trait registry used for dispatch.
// If not set, dispatch.Default() will be used.
func (e *Engine) WithRegistry(reg *dispatch.Registry) *Engine {
	e.reg = reg
	return e
}

// WithLogger sets the logger.
// If not set, slog.Default() will be used.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithAssertionStubs makes Emit place inferred bounds on free-standing
// assertion structs instead of the enum's where clause.
func (e *Engine) WithAssertionStubs() *Engine {
	e.stubs = true
	return e
}

// Assembled is the result of matching every variant.
type Assembled struct {
	Subject    *syntax.Subject
	Expr       *syntax.PatternExpr
	PolyMap    *PolyMap
	Blueprints *dispatch.Blueprints

	// Predicates are the synthetic `id: Bounds` predicates introduced by
	// `impl Trait` pattern positions.
	Predicates []syntax.WherePredicate

	// Matches holds, per variant, the index of the selected fragment or -1.
	Matches []int

	stash  diag.Stash
	stubs  bool
	logger *slog.Logger
	impls  map[syntax.UniqueID]bool
}

// Assemble matches each variant, in declaration order, against the first
// fragment whose shape fits and binds every position. Mismatches are
// recorded and the walk continues with the next variant.
func (e *Engine) Assemble() *Assembled {
	reg := e.reg
	if reg == nil {
		reg = dispatch.Default()
	}
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assembled{
		Subject: e.subject,
		Expr:    e.expr,
		PolyMap: NewPolyMap(),
		stubs:   e.stubs,
		logger:  logger,
		impls:   make(map[syntax.UniqueID]bool),
	}

	if len(e.subject.Variants) == 0 {
		a.stash.Add(diag.CodeEmptyVariants, e.subject.Ident.Pos, "Expected to find at least one variant.")
		return a
	}

	a.Blueprints = dispatch.Plan(reg, e.expr.Clause, logger)

	pats := make([]Comparable, len(e.expr.Pattern))
	for i, f := range e.expr.Pattern {
		pats[i] = PatternComparable(f)
	}
	patternText := e.expr.String()

	for _, v := range e.subject.Variants {
		idx := Select(pats, VariantComparable(v))
		a.Matches = append(a.Matches, idx)
		if idx < 0 {
			a.stash.Add(diag.CodeNoMatch, v.Ident.Pos, "`%s` doesn't match pattern `%s`", v, patternText)
			continue
		}
		frag := e.expr.Pattern[idx]
		if frag.Composite.Kind == syntax.CompositeUnit {
			continue
		}
		for _, pair := range Zip(frag, v) {
			if !a.unify(v, pair) {
				break
			}
		}
	}

	logger.Debug("assembled",
		slog.String("enum", e.subject.Ident.Text),
		slog.Int("variants", len(e.subject.Variants)),
		slog.Int("blueprints", a.Blueprints.Len()),
		slog.Int("bindings", a.PolyMap.Len()),
		slog.Int("errors", a.stash.Len()))
	return a
}

// unify binds one (parameter, field) position. It returns false when the
// walk over the variant should stop.
func (a *Assembled) unify(v syntax.Variant, p Pair) bool {
	field := p.Field.Ty
	itemID := field.ID()
	sig := dispatch.NewVariantSig(a.Subject.Ident.Text, v, p.Index)

	switch {
	case p.Inferred:
		a.Blueprints.Attach(itemID, sig)
		a.PolyMap.Insert(itemID, field)
		return true
	case p.Param.IsVariadic():
		return false
	}

	pat := p.Param.Ty
	if pat.Kind == syntax.TypeImpl {
		a.unifyImpl(v, pat, field)
		return true
	}

	patID := pat.ID()
	switch generic := pat.IsGeneric(); {
	case generic && patID == itemID:
		a.Blueprints.Attach(patID, sig)
		a.PolyMap.Insert(patID, field)
	case generic:
		a.Blueprints.Attach(patID, sig)
		a.Blueprints.Attach(itemID, sig)
		a.PolyMap.Insert(patID, field)
		a.PolyMap.Insert(itemID, field)
	case patID == itemID:
		a.Blueprints.Attach(itemID, sig)
		a.PolyMap.Insert(patID, field)
	case pat.IsInfer():
		a.Blueprints.Attach(itemID, sig)
		a.PolyMap.Insert(itemID, field)
	default:
		a.stash.Add(diag.CodeTypeMismatch, field.Pos(), "Found `%s` but expected `%s`.", field, pat)
	}
	return true
}

// unifyImpl binds an `impl Bounds` position to a synthetic id unique to the
// bounds and the variant, and records `id: Bounds` for propagation.
func (a *Assembled) unifyImpl(v syntax.Variant, pat, field *syntax.Type) {
	if !a.validateBounds(pat.Bounds) {
		return
	}
	ident := implIdent(pat.Bounds, v.Ident.Text)
	if ident == "" {
		return
	}
	bounded := &syntax.Type{
		Kind:   syntax.TypePath,
		Tokens: []syntax.Token{syntax.NewIdent(ident, pat.Pos())},
	}
	id := bounded.ID()
	a.PolyMap.Insert(id, field)
	if !a.impls[id] {
		a.impls[id] = true
		a.Predicates = append(a.Predicates, syntax.NewTypePredicate(bounded, pat.Bounds, pat.Pos()))
	}
}

func implIdent(bounds []syntax.TypeBound, variant string) string {
	var b strings.Builder
	for _, bound := range bounds {
		b.WriteString(strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
				return r
			}
			return -1
		}, bound.String()))
	}
	if b.Len() == 0 {
		return ""
	}
	return "__Impl_" + b.String() + "_" + variant
}

// Err returns the diagnostics recorded so far, or nil.
func (a *Assembled) Err() error { return a.stash.Err() }

// Diagnostics returns the diagnostics recorded so far.
func (a *Assembled) Diagnostics() []diag.Diagnostic { return a.stash.Diagnostics() }
