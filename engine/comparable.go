package engine

import "github.com/viktorlott/enum-shape/syntax"

// Comparable is the shape of a pattern fragment or a variant reduced to what
// shape matching needs: discriminant name, composite kind and arity.
type Comparable struct {
	Ident    *syntax.Token
	Kind     syntax.CompositeKind
	Arity    int
	Variadic bool // pattern ends in `..` or `..N`

	// Delim is the kind the item was written with. It differs from Kind
	// only for `V()` and `V {}`, which compare as units.
	Delim syntax.CompositeKind
}

// PatternComparable returns the comparable view of a fragment.
func PatternComparable(f syntax.PatFrag) Comparable {
	c := f.Composite
	return Comparable{
		Ident:    f.Ident,
		Kind:     c.Kind,
		Arity:    c.Arity(),
		Variadic: c.HasVariadic(),
		Delim:    c.Kind,
	}
}

// VariantComparable returns the comparable view of a variant. A variant with
// an empty field list is a unit.
func VariantComparable(v syntax.Variant) Comparable {
	kind := v.Fields.Kind
	if v.Fields.Len() == 0 {
		kind = syntax.CompositeUnit
	}
	ident := v.Ident
	return Comparable{Ident: &ident, Kind: kind, Arity: v.Fields.Len(), Delim: v.Fields.Kind}
}

// Compatible reports whether a pattern with shape p can match an item with
// shape item. Kinds must agree and arities must be equal, except that a
// trailing variadic accepts any number of extra fields. An inferred pattern
// matches everything, and `(..)` or `{ .. }` match an empty variant written
// with the same delimiters.
func (p Comparable) Compatible(item Comparable) bool {
	if p.Kind == syntax.CompositeInferred {
		return true
	}
	if p.Variadic && p.Arity == 1 && item.Arity == 0 && item.Delim == p.Kind {
		return true
	}
	if p.Kind != item.Kind {
		return false
	}
	if p.Variadic {
		return item.Arity >= p.Arity-1
	}
	return p.Arity == item.Arity
}

// Select returns the index of the first fragment in pats that is compatible
// with item, or -1.
func Select(pats []Comparable, item Comparable) int {
	for i, p := range pats {
		if p.Compatible(item) {
			return i
		}
	}
	return -1
}

// Pair is one position of a matched (fragment, variant) pair.
type Pair struct {
	Index    int
	Param    syntax.PatFieldKind
	Inferred bool // the whole fragment is `_`
	Field    syntax.Field
}

// Zip pairs the parameters of frag with the fields of v by position. For an
// inferred fragment every field is paired with a wildcard. Pairing stops at
// the shorter of the two lists.
func Zip(frag syntax.PatFrag, v syntax.Variant) []Pair {
	fields := v.Fields.Fields
	if frag.Composite.Kind == syntax.CompositeInferred {
		out := make([]Pair, len(fields))
		for i, f := range fields {
			out[i] = Pair{Index: i, Inferred: true, Field: f}
		}
		return out
	}
	params := frag.Composite.Params
	n := min(len(params), len(fields))
	out := make([]Pair, n)
	for i := 0; i < n; i++ {
		out[i] = Pair{Index: i, Param: params[i], Field: fields[i]}
	}
	return out
}
