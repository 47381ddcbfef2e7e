// Package scan finds penum attributes in Rust source.
//
// Directives are outer attributes in one of the forms:
//
//	#[penum(PATTERN)]   #[penum[PATTERN]]   #[penum{PATTERN}]
//	#[penum]            (on a trait: register it for dispatch)
//	#[to_string]  #[fmt]  #[into(TYPE)]  #[deref(TYPE)]  #[static_str]
//
// A directive must be followed by an enum or, for bare #[penum], a trait.
// Other attributes and doc comments between the directive and the item are
// kept as part of the item.
package scan

import (
	"fmt"
	"strings"

	"github.com/viktorlott/enum-shape/syntax"
)

// Kind is the attribute name of a directive.
type Kind string

const (
	KindPenum     Kind = "penum"
	KindToString  Kind = "to_string"
	KindFmt       Kind = "fmt"
	KindInto      Kind = "into"
	KindDeref     Kind = "deref"
	KindStaticStr Kind = "static_str"
)

var kinds = map[string]Kind{
	"penum":      KindPenum,
	"to_string":  KindToString,
	"fmt":        KindFmt,
	"into":       KindInto,
	"deref":      KindDeref,
	"static_str": KindStaticStr,
}

// ItemKind is the kind of the annotated item.
type ItemKind string

const (
	ItemEnum  ItemKind = "enum"
	ItemTrait ItemKind = "trait"
)

// Directive is one annotated item.
type Directive struct {
	Kind     Kind
	Args     []syntax.Token // attribute arguments without their delimiters
	Bare     bool           // written without arguments, e.g. #[penum]
	ItemKind ItemKind
	Item     []syntax.Token // the item, from its first attribute to its closing brace
	Pos      syntax.Pos     // position of the directive's `#`

	// Start and End are the byte offsets of the directive and the item
	// together; src[Start:End] is the text an expansion replaces.
	Start, End int
}

// ArgsText renders the arguments as source text.
func (d Directive) ArgsText() string { return syntax.Render(d.Args) }

// Scan returns every directive in src, in source order.
func Scan(file, src string) ([]Directive, error) {
	toks, err := syntax.Lex(file, src)
	if err != nil {
		return nil, err
	}
	var out []Directive
	for i := 0; i < len(toks); {
		kind, args, bare, next, ok := directiveAt(toks, i)
		if !ok {
			i++
			continue
		}
		d := Directive{Kind: kind, Args: args, Bare: bare, Pos: toks[i].Pos, Start: toks[i].Pos.Offset}
		itemStart := next
		itemKind, end, err := item(toks, itemStart)
		if err != nil {
			return nil, fmt.Errorf("%s: #[%s] %w", d.Pos, kind, err)
		}
		if itemKind == ItemTrait && !(kind == KindPenum && bare) {
			return nil, fmt.Errorf("%s: #[%s] cannot be applied to a trait", d.Pos, kind)
		}
		d.ItemKind = itemKind
		d.Item = toks[itemStart : end+1]
		d.End = toks[end].End
		out = append(out, d)
		i = end + 1
	}
	return out, nil
}

// directiveAt reports whether toks[i] starts a directive attribute. It
// returns the index just past the attribute.
func directiveAt(toks []syntax.Token, i int) (kind Kind, args []syntax.Token, bare bool, next int, ok bool) {
	if !toks[i].Is("#") || i+2 >= len(toks) || !toks[i+1].Is("[") {
		return
	}
	close := matching(toks, i+1)
	if close < 0 {
		return
	}
	// Accept both `penum` and `penum::penum`.
	j := i + 2
	name := ""
	for j < close && toks[j].Kind == syntax.Ident {
		name = toks[j].Text
		j++
		if j < close && toks[j].Is("::") {
			j++
			continue
		}
		break
	}
	kind, ok = kinds[name]
	if !ok {
		return
	}
	switch {
	case j == close:
		bare = true
	case toks[j].Kind == syntax.Punct && strings.Contains("([{", toks[j].Text) && matching(toks, j) == close-1:
		args = toks[j+1 : close-1]
	default:
		return "", nil, false, 0, false
	}
	return kind, args, bare, close + 1, true
}

// item finds the enum or trait starting at toks[i], skipping outer
// attributes, doc comments and visibility, and returns the index of its
// closing brace.
func item(toks []syntax.Token, i int) (ItemKind, int, error) {
	for i < len(toks) {
		switch t := toks[i]; {
		case t.Kind == syntax.DocComment:
			i++
		case t.Is("#") && i+1 < len(toks) && toks[i+1].Is("["):
			close := matching(toks, i+1)
			if close < 0 {
				return "", 0, fmt.Errorf("has an unclosed attribute")
			}
			i = close + 1
		case t.Is("pub"):
			i++
			if i < len(toks) && toks[i].Is("(") {
				if close := matching(toks, i); close >= 0 {
					i = close + 1
				}
			}
		case t.Is("unsafe"), t.Is("auto"):
			i++
		case t.Is("enum"), t.Is("trait"):
			kind := ItemKind(t.Text)
			for j := i + 1; j < len(toks); j++ {
				if toks[j].Is(";") {
					break
				}
				if toks[j].Is("{") {
					if close := matching(toks, j); close >= 0 {
						return kind, close, nil
					}
					return "", 0, fmt.Errorf("has an unclosed %s body", kind)
				}
			}
			return "", 0, fmt.Errorf("must be followed by an enum or trait with a body")
		default:
			return "", 0, fmt.Errorf("must be followed by an enum or trait declaration, found `%s`", t)
		}
	}
	return "", 0, fmt.Errorf("must be followed by an enum or trait declaration")
}

// matching returns the index of the delimiter closing toks[open], or -1.
func matching(toks []syntax.Token, open int) int {
	closers := map[string]string{"(": ")", "[": "]", "{": "}"}
	var stack []string
	for i := open; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != syntax.Punct {
			continue
		}
		if c, ok := closers[t.Text]; ok {
			stack = append(stack, c)
			continue
		}
		if len(stack) > 0 && t.Text == stack[len(stack)-1] {
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
