package engine

import (
	"github.com/viktorlott/enum-shape/diag"
	"github.com/viktorlott/enum-shape/syntax"
)

// validateBounds records an error for every bound that cannot be propagated
// onto a concrete type and reports whether all of them can.
func (a *Assembled) validateBounds(bounds []syntax.TypeBound) bool {
	ok := true
	for _, b := range bounds {
		switch {
		case b.IsLifetime():
			a.stash.Add(diag.CodeLifetimeBound, b.Pos(), "Lifetime bounds are not supported: `%s`", b)
			ok = false
		case b.Modifier == syntax.ModifierMaybe:
			a.stash.Add(diag.CodeMaybeBound, b.Pos(), "Maybe bounds are not supported: `%s`", b)
			ok = false
		}
	}
	return ok
}
