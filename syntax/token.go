// Package syntax is the token model, parser and printer for the Rust-like
// surface language that penum operates on: shape patterns, where
// clauses, enum declarations and trait declarations.
//
// Everything in this package is plain data. Types carry the exact tokens
// they were parsed from so they can be re-rendered and canonicalised without
// a host compiler.
package syntax

import "fmt"

// Pos is a location in source text.
type Pos struct {
	File   string
	Offset int // byte offset, 0-based
	Line   int // 1-based
	Column int // 1-based, in runes
}

// IsValid reports whether the position refers to real source text.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	switch {
	case !p.IsValid():
		return "-"
	case p.File == "":
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	default:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
}

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	EOF        TokenKind = iota
	Ident                // identifiers and keywords
	Lifetime             // 'a
	Literal              // numeric, char and byte literals
	String               // "...", r"...", r#"..."#, b"..."
	Punct                // operators and delimiters
	DocComment           // ///, //!, /** */
)

// String returns the kind name.
func (k TokenKind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "Ident"
	case Lifetime:
		return "Lifetime"
	case Literal:
		return "Literal"
	case String:
		return "String"
	case Punct:
		return "Punct"
	case DocComment:
		return "DocComment"
	default:
		return "Unknown"
	}
}

// Token is a single lexeme. Text is the exact source spelling.
type Token struct {
	Kind TokenKind
	Text string
	Pos  Pos
	End  int // byte offset just past the token
}

// Is reports whether t is an identifier or punctuation spelled text.
func (t Token) Is(text string) bool {
	return (t.Kind == Ident || t.Kind == Punct) && t.Text == text
}

// IsKeyword reports whether t is a reserved word.
func (t Token) IsKeyword() bool {
	return t.Kind == Ident && keywords[t.Text]
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "end of input"
	}
	return t.Text
}

// WithPos returns a copy of t placed at pos.
func (t Token) WithPos(pos Pos) Token {
	t.Pos = pos
	t.End = pos.Offset + len(t.Text)
	return t
}

// Synthetic builds a token that did not come from source text.
func Synthetic(kind TokenKind, text string, pos Pos) Token {
	return Token{Kind: kind, Text: text, Pos: pos, End: pos.Offset + len(text)}
}

var keywords = map[string]bool{
	"as": true, "async": true, "await": true, "break": true, "const": true,
	"continue": true, "crate": true, "dyn": true, "else": true, "enum": true,
	"extern": true, "false": true, "fn": true, "for": true, "if": true,
	"impl": true, "in": true, "let": true, "loop": true, "match": true,
	"mod": true, "move": true, "mut": true, "pub": true, "ref": true,
	"return": true, "self": true, "Self": true, "static": true, "struct": true,
	"super": true, "trait": true, "true": true, "type": true, "unsafe": true,
	"use": true, "where": true, "while": true,
}

// NewIdent builds an identifier token that did not come from source text.
func NewIdent(name string, pos Pos) Token { return Synthetic(Ident, name, pos) }
