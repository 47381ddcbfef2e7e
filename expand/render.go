package expand

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/viktorlott/enum-shape/syntax"
)

const indent = "    "

type method struct {
	sig      string
	arms     []string
	fallback string
}

// arms returns `Enum::V(f0) => body,` for every variant with an expression,
// in declaration order. wrap, when set, turns the expression into the body.
func arms(subject *syntax.Subject, wrap func(string) string) []string {
	var out []string
	for _, v := range subject.Variants {
		if len(v.Discriminant) == 0 || v.Ident.Text == DefaultVariant {
			continue
		}
		body := syntax.Render(v.Discriminant)
		if wrap != nil {
			body = wrap(body)
		}
		out = append(out, pattern(subject.Ident.Text, v)+" => "+body)
	}
	return out
}

// pattern binds every field of v: unnamed ones as f0, f1, … and named ones
// by name.
func pattern(enum string, v syntax.Variant) string {
	path := enum + "::" + v.Ident.Text
	names := make([]string, len(v.Fields.Fields))
	for i, f := range v.Fields.Fields {
		if f.Name != nil {
			names[i] = f.Name.Text
		} else {
			names[i] = fmt.Sprintf("f%d", i)
		}
	}
	switch {
	case v.Fields.Kind == syntax.CompositeUnnamed:
		return path + "(" + strings.Join(names, ", ") + ")"
	case v.Fields.Kind == syntax.CompositeNamed && len(names) > 0:
		return path + " { " + strings.Join(names, ", ") + " }"
	case v.Fields.Kind == syntax.CompositeNamed:
		return path + " {}"
	default:
		return path
	}
}

// strip returns a copy of subject without discriminants or the default
// variant, and the catch-all body: the default variant's expression (wrapped
// like the arms) or fallback.
func strip(subject *syntax.Subject, wrap func(string) string, fallback string) (*syntax.Subject, string) {
	c := *subject
	c.Variants = make([]syntax.Variant, 0, len(subject.Variants))
	for _, v := range subject.Variants {
		if v.Ident.Text == DefaultVariant && len(v.Discriminant) > 0 {
			fallback = syntax.Render(v.Discriminant)
			if wrap != nil {
				fallback = wrap(fallback)
			}
			continue
		}
		v.Discriminant = nil
		c.Variants = append(c.Variants, v)
	}
	c.Attrs = slices.Clone(subject.Attrs)
	return &c, fallback
}

func renderImpl(subject *syntax.Subject, trait string, assoc []string, m method) string {
	implGenerics, tyGenerics, where := subject.Generics.SplitForImpl()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "impl%s %s for %s%s%s {\n", implGenerics, trait, subject.Ident.Text, tyGenerics, where)
	for _, a := range assoc {
		fmt.Fprintf(&buf, "%s%s\n\n", indent, a)
	}
	pad := indent + indent
	fmt.Fprintf(&buf, "%s%s {\n", indent, m.sig)
	fmt.Fprintf(&buf, "%smatch self {\n", pad)
	for _, arm := range m.arms {
		fmt.Fprintf(&buf, "%s%s%s,\n", pad, indent, arm)
	}
	fmt.Fprintf(&buf, "%s%s_ => %s,\n", pad, indent, m.fallback)
	fmt.Fprintf(&buf, "%s}\n", pad)
	fmt.Fprintf(&buf, "%s}\n", indent)
	buf.WriteString("}\n")
	return buf.String()
}
