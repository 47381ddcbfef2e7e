package dispatch

import (
	"log/slog"
	"strings"

	"github.com/viktorlott/enum-shape/syntax"
)

// VariantSig addresses the field a generated match arm forwards to.
type VariantSig struct {
	Enum    string
	Variant string
	Kind    syntax.CompositeKind // Unnamed or Named
	Field   syntax.Field
	Index   int // position of Field within the variant
	Arity   int // number of fields of the variant
}

// NewVariantSig builds the signature for field index of v.
func NewVariantSig(enum string, v syntax.Variant, index int) VariantSig {
	return VariantSig{
		Enum:    enum,
		Variant: v.Ident.Text,
		Kind:    v.Fields.Kind,
		Field:   v.Fields.Fields[index],
		Index:   index,
		Arity:   v.Fields.Len(),
	}
}

// Pattern returns the match pattern that binds the selected field to
// binding, e.g. `Enum::V2(_, val)` or `Enum::V { name: val, .. }`.
func (s VariantSig) Pattern(binding string) string {
	path := s.Enum + "::" + s.Variant
	if s.Kind == syntax.CompositeNamed {
		name := s.Field.Name.Text
		if s.Arity > 1 {
			return path + " { " + name + ": " + binding + ", .. }"
		}
		return path + " { " + name + ": " + binding + " }"
	}
	parts := make([]string, 0, s.Index+2)
	for i := 0; i < s.Index; i++ {
		parts = append(parts, "_")
	}
	parts = append(parts, binding)
	if s.Index < s.Arity-1 {
		parts = append(parts, "..")
	}
	return path + "(" + strings.Join(parts, ", ") + ")"
}

// Blueprint is the plan for one generated impl block: the dispatchable bound,
// the trait declaration it refers to, and every field the impl forwards to.
type Blueprint struct {
	Key   syntax.UniqueID // canonical id of the bounded type
	Bound syntax.TypeBound
	Trait *syntax.ItemTrait
	Sigs  []VariantSig
}

// Blueprints is the ordered set of blueprints for one expansion.
type Blueprints struct {
	list  []*Blueprint
	byKey map[syntax.UniqueID][]*Blueprint
}

// Plan builds a blueprint for every dispatchable bound in clause whose trait
// is known to reg. Bounds naming an unknown trait are skipped; the engine
// still propagates them as plain bounds.
func Plan(reg *Registry, clause *syntax.Clause, logger *slog.Logger) *Blueprints {
	if logger == nil {
		logger = slog.Default()
	}
	bps := &Blueprints{byKey: make(map[syntax.UniqueID][]*Blueprint)}
	if clause == nil {
		return bps
	}
	for _, pred := range clause.Predicates {
		switch pred.Kind {
		case syntax.PredicateImpl:
			bps.plan(reg, pred.BoundedTy, pred.Bounds[0], logger)
		case syntax.PredicateType:
			for _, b := range pred.Bounds {
				if b.Modifier == syntax.ModifierDispatch {
					bps.plan(reg, pred.BoundedTy, b, logger)
				}
			}
		}
	}
	return bps
}

func (bps *Blueprints) plan(reg *Registry, ty *syntax.Type, b syntax.TypeBound, logger *slog.Logger) {
	tr, ok := reg.LookupBound(b)
	if !ok {
		logger.Debug("dispatch trait not registered, keeping plain bound",
			slog.String("trait", b.Name()),
			slog.String("type", ty.String()))
		return
	}
	key, path := ty.ID(), b.SanitizedPath()
	for _, prev := range bps.byKey[key] {
		if prev.Bound.SanitizedPath() == path {
			logger.Debug("duplicate dispatch bound",
				slog.String("trait", path),
				slog.String("type", ty.String()))
			return
		}
	}
	for _, name := range unboundAssocTypes(tr, b) {
		logger.Warn("dispatch impl leaves associated type without a value",
			slog.String("trait", path),
			slog.String("type", ty.String()),
			slog.String("assoc", name))
	}
	bp := &Blueprint{Key: key, Bound: b, Trait: tr}
	bps.list = append(bps.list, bp)
	bps.byKey[bp.Key] = append(bps.byKey[bp.Key], bp)
}

// Attach appends sig to every blueprint keyed on key and reports how many
// blueprints took it.
func (bps *Blueprints) Attach(key syntax.UniqueID, sig VariantSig) int {
	if bps == nil {
		return 0
	}
	list := bps.byKey[key]
	for _, bp := range list {
		bp.Sigs = append(bp.Sigs, sig)
	}
	return len(list)
}

// Has reports whether any blueprint is keyed on key.
func (bps *Blueprints) Has(key syntax.UniqueID) bool {
	return bps != nil && len(bps.byKey[key]) > 0
}

// Len returns the number of blueprints.
func (bps *Blueprints) Len() int {
	if bps == nil {
		return 0
	}
	return len(bps.list)
}

// Each calls fn for every blueprint in clause order.
func (bps *Blueprints) Each(fn func(*Blueprint)) {
	if bps == nil {
		return
	}
	for _, bp := range bps.list {
		fn(bp)
	}
}

// All returns the blueprints in clause order.
func (bps *Blueprints) All() []*Blueprint {
	if bps == nil {
		return nil
	}
	return bps.list
}

// unboundAssocTypes returns the associated types of tr that have neither a
// default nor a binding on b.
func unboundAssocTypes(tr *syntax.ItemTrait, b syntax.TypeBound) []string {
	bound := make(map[string]bool)
	for _, x := range b.Bindings() {
		if x.Type != nil {
			bound[x.Binding.Text] = true
		}
	}
	var out []string
	for _, at := range tr.AssocTypes {
		if at.Default == nil && !bound[at.Ident.Text] {
			out = append(out, at.Ident.Text)
		}
	}
	return out
}
