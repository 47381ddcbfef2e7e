// Package expand implements the small enum attributes that turn a
// per-variant discriminant expression into a trait impl:
//
//	#[to_string]
//	enum Msg {
//	    Hello(String) = "hello {f0}",
//	    Bye { name: String } = "bye {name}",
//	    __Default__ = "unknown",
//	}
//
// Each variant carrying an expression becomes one match arm. Unnamed fields
// are bound as f0, f1, …; named fields by their name. The optional
// __Default__ variant supplies the body of the trailing `_` arm and is
// removed from the enum together with every other discriminant.
package expand

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/viktorlott/enum-shape/syntax"
)

// DefaultVariant is the variant name whose expression fills the catch-all arm.
const DefaultVariant = "__Default__"

// Kind names an expander.
type Kind string

const (
	KindToString  Kind = "to_string"
	KindFmt       Kind = "fmt"
	KindInto      Kind = "into"
	KindDeref     Kind = "deref"
	KindStaticStr Kind = "static_str"
)

// Kinds returns every expander in a stable order.
func Kinds() []Kind {
	return []Kind{KindToString, KindFmt, KindInto, KindDeref, KindStaticStr}
}

// ParseKind returns the expander named name.
func ParseKind(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

// TakesType reports whether the expander needs a target type argument.
func (k Kind) TakesType() bool { return k == KindInto || k == KindDeref }

// Output is the rewritten enum followed by the generated impls.
type Output struct {
	Subject *syntax.Subject
	Impls   []string
}

func (o *Output) String() string {
	var b strings.Builder
	b.WriteString(o.Subject.Format())
	for _, impl := range o.Impls {
		b.WriteString("\n")
		b.WriteString(impl)
	}
	return b.String()
}

// Expand runs the expander kind over subject. For into and deref, arg is the
// target type; the other expanders take no argument.
func Expand(kind Kind, arg string, subject *syntax.Subject) (*Output, error) {
	arg = strings.TrimSpace(arg)
	if !kind.TakesType() {
		if arg != "" {
			return nil, fmt.Errorf("%s takes no arguments, found `%s`", kind, arg)
		}
		switch kind {
		case KindToString:
			return ToString(subject), nil
		case KindFmt:
			return Fmt(subject), nil
		case KindStaticStr:
			return StaticStr(subject), nil
		}
		return nil, fmt.Errorf("unknown expander %q", kind)
	}
	if arg == "" {
		return nil, fmt.Errorf("%s expects a target type", kind)
	}
	ty, err := syntax.ParseType("attr", arg)
	if err != nil {
		return nil, fmt.Errorf("%s target: %w", kind, err)
	}
	if kind == KindInto {
		return Into(ty, subject), nil
	}
	return Deref(ty, subject), nil
}

// ToString implements std::string::ToString with format! arms.
func ToString(subject *syntax.Subject) *Output {
	wrap := func(expr string) string { return "format!(" + expr + ")" }
	stripped, fallback := strip(subject, wrap, "String::new()")
	return &Output{
		Subject: stripped,
		Impls: []string{renderImpl(stripped, "std::string::ToString", nil, method{
			sig:      "fn to_string(&self) -> String",
			arms:     arms(subject, wrap),
			fallback: fallback,
		})},
	}
}

// Fmt implements std::fmt::Display with write! arms.
func Fmt(subject *syntax.Subject) *Output {
	wrap := func(expr string) string { return "write!(f, " + expr + ")" }
	stripped, fallback := strip(subject, wrap, `write!(f, "{}", "".to_string())`)
	return &Output{
		Subject: stripped,
		Impls: []string{renderImpl(stripped, "std::fmt::Display", nil, method{
			sig:      "fn fmt(&self, f: &mut std::fmt::Formatter<'_>) -> std::fmt::Result",
			arms:     arms(subject, wrap),
			fallback: fallback,
		})},
	}
}

// Into implements Into<ty> with the expressions as arm bodies.
func Into(ty *syntax.Type, subject *syntax.Subject) *Output {
	stripped, fallback := strip(subject, nil, "Default::default()")
	return &Output{
		Subject: stripped,
		Impls: []string{renderImpl(stripped, "Into<"+ty.String()+">", nil, method{
			sig:      "fn into(self) -> " + ty.String(),
			arms:     arms(subject, nil),
			fallback: fallback,
		})},
	}
}

// Deref implements std::ops::Deref with Target = ty.
func Deref(ty *syntax.Type, subject *syntax.Subject) *Output {
	stripped, fallback := strip(subject, nil, "Default::default()")
	return &Output{
		Subject: stripped,
		Impls: []string{renderImpl(stripped, "std::ops::Deref", []string{"type Target = " + ty.String() + ";"}, method{
			sig:      "fn deref(&self) -> &Self::Target",
			arms:     arms(subject, nil),
			fallback: fallback,
		})},
	}
}

// StaticStr is Deref to str plus AsRef<str> and inherent as_str and
// static_str accessors.
func StaticStr(subject *syntax.Subject) *Output {
	out := Deref(&syntax.Type{Kind: syntax.TypePath, Tokens: []syntax.Token{syntax.NewIdent("str", subject.Ident.Pos)}}, subject)
	s := out.Subject
	implGenerics, tyGenerics, where := s.Generics.SplitForImpl()
	self := s.Ident.Text + tyGenerics

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "impl%s AsRef<str> for %s%s {\n", implGenerics, self, where)
	fmt.Fprintf(&buf, "%sfn as_ref(&self) -> &str {\n%s%s&**self\n%s}\n}\n", indent, indent, indent, indent)
	out.Impls = append(out.Impls, buf.String())

	buf.Reset()
	fmt.Fprintf(&buf, "impl%s %s%s {\n", implGenerics, self, where)
	fmt.Fprintf(&buf, "%sfn as_str(&self) -> &str {\n%s%s&**self\n%s}\n\n", indent, indent, indent, indent)
	fmt.Fprintf(&buf, "%sfn static_str(&self) -> &str {\n%s%s&**self\n%s}\n}\n", indent, indent, indent, indent)
	out.Impls = append(out.Impls, buf.String())
	return out
}
