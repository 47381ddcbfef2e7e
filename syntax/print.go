package syntax

import "strings"

// Render joins tokens into a single line of source using conventional
// spacing. Equal token sequences always render identically, which is what
// makes the rendering usable as a canonical form.
func Render(toks []Token) string {
	var b strings.Builder
	var prev Token
	first := true
	for _, tok := range toks {
		if tok.Kind == EOF {
			break
		}
		if !first {
			switch {
			case prev.Kind == DocComment:
				b.WriteByte('\n')
			case spaceBetween(prev, tok):
				b.WriteByte(' ')
			}
		}
		b.WriteString(tok.Text)
		prev, first = tok, false
	}
	return b.String()
}

func spaceBetween(prev, next Token) bool {
	if next.Kind == DocComment {
		return true
	}
	if next.Kind == Punct {
		switch next.Text {
		case ",", ";", ")", "]", ".", "::", ":", ">", "?":
			return false
		case "(", "[":
			return !(isWord(prev) && !prev.IsKeyword()) &&
				!prev.Is(")") && !prev.Is("]") && !prev.Is(">") && !prev.Is("!") &&
				!prev.Is("#") && !prev.Is("<") && !isTight(prev)
		case "<":
			return !(prev.Kind == Ident) && !prev.Is("::") && !prev.Is(">")
		case "!":
			return !(prev.Kind == Ident) && !isTight(prev)
		}
	}
	if prev.Kind == Punct {
		if isTight(prev) {
			return false
		}
		switch prev.Text {
		case "<":
			return false
		case "..":
			return next.Kind != Literal && !next.Is(")") && !next.Is("]")
		}
	}
	return true
}

// isTight reports whether nothing should follow tok with a space.
func isTight(tok Token) bool {
	if tok.Kind != Punct {
		return false
	}
	switch tok.Text {
	case "(", "[", "::", "&", "&&", "#", "$", "^", "!", "~", "'", "@", ".", "?":
		return true
	}
	return false
}

func isWord(tok Token) bool {
	return tok.Kind == Ident || tok.Kind == Literal || tok.Kind == String || tok.Kind == Lifetime
}

// printer writes indented multi-line source.
type printer struct {
	b      strings.Builder
	indent int
}

func (p *printer) line(parts ...string) {
	if len(parts) == 0 {
		p.b.WriteByte('\n')
		return
	}
	p.b.WriteString(strings.Repeat("    ", p.indent))
	for _, s := range parts {
		p.b.WriteString(s)
	}
	p.b.WriteByte('\n')
}

func (p *printer) String() string { return p.b.String() }
