package dispatch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/viktorlott/enum-shape/syntax"
)

const indent = "    "

// Render returns the impl block for bp on subject. The subject's generics and
// where clause are forwarded unchanged.
func (bp *Blueprint) Render(subject *syntax.Subject) string {
	implGenerics, tyGenerics, where := subject.Generics.SplitForImpl()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "impl%s %s for %s%s%s {\n",
		implGenerics, bp.Bound.SanitizedPath(), subject.Ident.Text, tyGenerics, where)

	subst := bp.substitutions()
	assoc := bp.assocTypes()
	for _, line := range assoc {
		buf.WriteString(indent + line + "\n")
	}
	for i, m := range bp.Trait.Methods {
		if i > 0 || len(assoc) > 0 {
			buf.WriteString("\n")
		}
		bp.renderMethod(&buf, m, subst)
	}
	buf.WriteString("}\n")
	return buf.String()
}

// substitutions maps the trait's generic parameters to the arguments written
// on the bound, falling back to parameter defaults.
func (bp *Blueprint) substitutions() map[string][]syntax.Token {
	params := bp.Trait.Generics.Params
	if len(params) == 0 {
		return nil
	}
	args := bp.Bound.Positional()
	subst := make(map[string][]syntax.Token, len(params))
	for i, p := range params {
		switch {
		case i < len(args):
			subst[p.Name.Text] = args[i].Tokens
		case len(p.Default) > 0:
			subst[p.Name.Text] = p.Default
		}
	}
	return subst
}

func substitute(toks []syntax.Token, subst map[string][]syntax.Token) []syntax.Token {
	if len(subst) == 0 {
		return toks
	}
	out := make([]syntax.Token, 0, len(toks))
	for i, t := range toks {
		repl, ok := subst[t.Text]
		afterPath := i > 0 && (toks[i-1].Is("::") || toks[i-1].Is("."))
		if ok && (t.Kind == syntax.Ident || t.Kind == syntax.Lifetime) && !afterPath {
			out = append(out, repl...)
			continue
		}
		out = append(out, t)
	}
	return out
}

func (bp *Blueprint) assocTypes() []string {
	var out []string
	bound := make(map[string]bool)
	for _, b := range bp.Bound.Bindings() {
		if b.Type == nil {
			continue
		}
		bound[b.Binding.Text] = true
		out = append(out, "type "+b.Binding.Text+" = "+b.Type.String()+";")
	}
	for _, at := range bp.Trait.AssocTypes {
		if bound[at.Ident.Text] || at.Default == nil {
			continue
		}
		out = append(out, "type "+at.Ident.Text+" = "+at.Default.String()+";")
	}
	return out
}

func (bp *Blueprint) renderMethod(buf *bytes.Buffer, m syntax.TraitMethod, subst map[string][]syntax.Token) {
	var params, args []string
	if len(m.SelfTokens) > 0 {
		params = append(params, syntax.Render(m.SelfTokens))
	}
	for i, p := range m.Params {
		name, decl := paramName(p.Pat, i)
		params = append(params, decl+": "+syntax.Render(substitute(p.Ty.Tokens, subst)))
		args = append(args, name)
	}

	var head strings.Builder
	if m.Async {
		head.WriteString("async ")
	}
	if m.Unsafe {
		head.WriteString("unsafe ")
	}
	head.WriteString("fn " + m.Ident.Text)
	if !m.Generics.IsEmpty() {
		gs := make([]string, len(m.Generics.Params))
		for i, g := range m.Generics.Params {
			gs[i] = syntax.Render(substitute(g.Tokens, subst))
		}
		head.WriteString("<" + strings.Join(gs, ", ") + ">")
	}
	head.WriteString("(" + strings.Join(params, ", ") + ")")
	out := m.Output
	if out != nil && len(subst) > 0 {
		if ty, err := syntax.ParseTypeTokens(substitute(out.Tokens, subst)); err == nil {
			out = ty
		}
	}
	if out != nil && !out.IsUnit() {
		head.WriteString(" -> " + out.String())
	}
	if w := m.Generics.Where; w != nil && len(w.Predicates) > 0 {
		preds := make([]string, len(w.Predicates))
		for i, p := range w.Predicates {
			preds[i] = syntax.Render(substitute(p.Tokens, subst))
		}
		head.WriteString(" where " + strings.Join(preds, ", "))
	}

	fmt.Fprintf(buf, "%s%s {\n", indent, head.String())
	if m.Receiver == syntax.ReceiverNone {
		fmt.Fprintf(buf, "%s%sunimplemented!()\n", indent, indent)
		fmt.Fprintf(buf, "%s}\n", indent)
		return
	}

	binding := "val"
	for _, a := range args {
		if a == binding {
			binding = "inner"
		}
	}
	call := binding + "." + m.Ident.Text + "(" + strings.Join(args, ", ") + ")"
	if m.Async {
		call += ".await"
	}

	pad := indent + indent
	fmt.Fprintf(buf, "%smatch self {\n", pad)
	for _, sig := range bp.Sigs {
		fmt.Fprintf(buf, "%s%s%s => %s,\n", pad, indent, sig.Pattern(binding), call)
	}
	fmt.Fprintf(buf, "%s%s_ => %s,\n", pad, indent, catchAll(out))
	fmt.Fprintf(buf, "%s}\n", pad)
	fmt.Fprintf(buf, "%s}\n", indent)
}

// paramName returns the name to forward a parameter with and the pattern to
// declare it with. Destructuring and wildcard patterns are replaced by argN.
func paramName(pat []syntax.Token, i int) (name, decl string) {
	switch {
	case len(pat) == 1 && pat[0].Kind == syntax.Ident && !pat[0].IsKeyword() && pat[0].Text != "_":
		return pat[0].Text, pat[0].Text
	case len(pat) == 2 && pat[0].Is("mut") && pat[1].Kind == syntax.Ident && !pat[1].IsKeyword():
		return pat[1].Text, "mut " + pat[1].Text
	}
	name = fmt.Sprintf("arg%d", i)
	return name, name
}

// catchAll is the body of the trailing `_` arm for a method returning out.
func catchAll(out *syntax.Type) string {
	switch {
	case out == nil || out.IsUnit():
		return "{}"
	case out.IsStrRef():
		return `""`
	default:
		return `panic!("Missing arm")`
	}
}
