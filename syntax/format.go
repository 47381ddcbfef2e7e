package syntax

import "strings"

// Format renders the enum declaration as multi-line source. The where clause,
// when present, is written one predicate per line with trailing commas.
func (s *Subject) Format() string {
	var p printer
	for _, a := range s.Attrs {
		p.line(a.String())
	}
	head := "enum " + s.Ident.Text + s.Generics.DeclGenerics()
	if len(s.Vis) > 0 {
		head = Render(s.Vis) + " " + head
	}
	if s.Generics.Where != nil && len(s.Generics.Where.Predicates) > 0 {
		p.line(head)
		writeWhere(&p, s.Generics.Where)
		p.line("{")
	} else {
		p.line(head, " {")
	}
	p.indent++
	for _, v := range s.Variants {
		for _, a := range v.Attrs {
			p.line(a.String())
		}
		text := v.String()
		if len(v.Discriminant) > 0 {
			text += " = " + Render(v.Discriminant)
		}
		p.line(text, ",")
	}
	p.indent--
	p.line("}")
	return p.String()
}

func (s *Subject) String() string { return s.Format() }

func writeWhere(p *printer, c *Clause) {
	p.line("where")
	p.indent++
	for _, pred := range c.Predicates {
		p.line(pred.String(), ",")
	}
	p.indent--
}

// WhereClause renders ` where A: B, C: D` for an impl header, or "" when
// there are no predicates.
func (g Generics) WhereClause() string {
	if g.Where == nil || len(g.Where.Predicates) == 0 {
		return ""
	}
	return " where " + g.Where.String()
}

// SplitForImpl returns the pieces of an impl header for a type with these
// generics: `impl<IMPL> Trait for Type<TY> WHERE`.
func (g Generics) SplitForImpl() (impl, ty, where string) {
	return g.ImplGenerics(), g.TypeGenerics(), g.WhereClause()
}

// Indent prefixes every non-empty line of s with n levels of four spaces.
func Indent(s string, n int) string {
	pad := strings.Repeat("    ", n)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
