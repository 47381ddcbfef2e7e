package syntax

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer splits source text into tokens. Whitespace and ordinary comments are
// dropped; doc comments are kept because they are attributes of the item
// they precede.
type Lexer struct {
	src  string
	file string
	off  int
	line int
	col  int

	// base shifts every produced offset, for text lexed out of a string literal.
	base int
}

// NewLexer returns a lexer for src whose positions are reported in file.
func NewLexer(file, src string) *Lexer {
	return &Lexer{src: src, file: file, line: 1, col: 1}
}

// Lex tokenizes src. The returned slice always ends with an EOF token.
func Lex(file, src string) ([]Token, error) {
	return NewLexer(file, src).All()
}

// LexAt tokenizes src as if it started at pos. It is used to re-lex the
// contents of string literals so diagnostics keep pointing into the file.
func LexAt(pos Pos, src string) ([]Token, error) {
	l := NewLexer(pos.File, src)
	if pos.IsValid() {
		l.line, l.col, l.base = pos.Line, pos.Column, pos.Offset
	}
	return l.All()
}

// All returns every remaining token, ending with EOF.
func (l *Lexer) All() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) pos() Pos {
	return Pos{File: l.file, Offset: l.base + l.off, Line: l.line, Column: l.col}
}

func (l *Lexer) peek(n int) rune {
	off := l.off
	for i := 0; i < n; i++ {
		if off >= len(l.src) {
			return 0
		}
		_, w := utf8.DecodeRuneInString(l.src[off:])
		off += w
	}
	if off >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[off:])
	return r
}

func (l *Lexer) advance() rune {
	if l.off >= len(l.src) {
		return 0
	}
	r, w := utf8.DecodeRuneInString(l.src[l.off:])
	l.off += w
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) errorf(pos Pos, format string, args ...any) error {
	return Errorf(pos, format, args...)
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	start := l.off
	pos := l.pos()
	emit := func(kind TokenKind) Token {
		return Token{Kind: kind, Text: l.src[start:l.off], Pos: pos, End: l.base + l.off}
	}

	r := l.peek(0)
	switch {
	case r == 0:
		return Token{Kind: EOF, Pos: pos, End: l.base + l.off}, nil

	case strings.HasPrefix(l.src[l.off:], "///") && !strings.HasPrefix(l.src[l.off:], "////"),
		strings.HasPrefix(l.src[l.off:], "//!"):
		for l.peek(0) != '\n' && l.peek(0) != 0 {
			l.advance()
		}
		tok := emit(DocComment)
		tok.Text = strings.TrimRight(tok.Text, "\r")
		return tok, nil

	case strings.HasPrefix(l.src[l.off:], "/**") && !strings.HasPrefix(l.src[l.off:], "/**/"):
		if err := l.blockComment(pos); err != nil {
			return Token{}, err
		}
		return emit(DocComment), nil

	case r == 'r' && (l.peek(1) == '"' || (l.peek(1) == '#' && (l.peek(2) == '"' || l.peek(2) == '#'))):
		l.advance()
		if err := l.rawString(pos); err != nil {
			return Token{}, err
		}
		return emit(String), nil

	case r == 'b' && l.peek(1) == 'r' && (l.peek(2) == '"' || l.peek(2) == '#'):
		l.advance()
		l.advance()
		if err := l.rawString(pos); err != nil {
			return Token{}, err
		}
		return emit(String), nil

	case r == 'b' && l.peek(1) == '"':
		l.advance()
		if err := l.quoted('"', pos); err != nil {
			return Token{}, err
		}
		return emit(String), nil

	case r == 'b' && l.peek(1) == '\'':
		l.advance()
		if err := l.quoted('\'', pos); err != nil {
			return Token{}, err
		}
		return emit(Literal), nil

	case r == 'r' && l.peek(1) == '#' && isIdentStart(l.peek(2)):
		l.advance()
		l.advance()
		for isIdentContinue(l.peek(0)) {
			l.advance()
		}
		return emit(Ident), nil

	case isIdentStart(r):
		for isIdentContinue(l.peek(0)) {
			l.advance()
		}
		return emit(Ident), nil

	case isDigit(r):
		l.number()
		return emit(Literal), nil

	case r == '"':
		if err := l.quoted('"', pos); err != nil {
			return Token{}, err
		}
		return emit(String), nil

	case r == '\'':
		// 'a is a lifetime unless a closing quote follows the identifier.
		if isIdentStart(l.peek(1)) {
			n := 2
			for isIdentContinue(l.peek(n)) {
				n++
			}
			if l.peek(n) != '\'' {
				for i := 0; i < n; i++ {
					l.advance()
				}
				return emit(Lifetime), nil
			}
		}
		if err := l.quoted('\'', pos); err != nil {
			return Token{}, err
		}
		return emit(Literal), nil
	}

	for _, p := range puncts {
		if strings.HasPrefix(l.src[l.off:], p) {
			for range p {
				l.advance()
			}
			return emit(Punct), nil
		}
	}
	return Token{}, l.errorf(pos, "unexpected character %q", r)
}

// puncts is ordered longest first. << and >> are deliberately absent so that
// nested generic arguments close one bracket at a time.
var puncts = []string{
	"..=", "...", "::", "->", "=>", "==", "!=", "<=", ">=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "^=", "&=", "|=", "..",
	"+", "-", "*", "/", "%", "^", "!", "&", "|", "=", "<", ">", "@", ".",
	",", ";", ":", "#", "$", "?", "~", "(", ")", "[", "]", "{", "}",
}

func (l *Lexer) skipTrivia() error {
	for {
		r := l.peek(0)
		switch {
		case r == 0:
			return nil
		case unicode.IsSpace(r):
			l.advance()
		case strings.HasPrefix(l.src[l.off:], "////"),
			strings.HasPrefix(l.src[l.off:], "//") && !strings.HasPrefix(l.src[l.off:], "///") && !strings.HasPrefix(l.src[l.off:], "//!"):
			for l.peek(0) != '\n' && l.peek(0) != 0 {
				l.advance()
			}
		case strings.HasPrefix(l.src[l.off:], "/**/"),
			strings.HasPrefix(l.src[l.off:], "/*") && !strings.HasPrefix(l.src[l.off:], "/**"):
			if err := l.blockComment(l.pos()); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (l *Lexer) blockComment(pos Pos) error {
	l.advance()
	l.advance()
	depth := 1
	for depth > 0 {
		switch {
		case l.peek(0) == 0:
			return l.errorf(pos, "unterminated block comment")
		case l.peek(0) == '/' && l.peek(1) == '*':
			l.advance()
			l.advance()
			depth++
		case l.peek(0) == '*' && l.peek(1) == '/':
			l.advance()
			l.advance()
			depth--
		default:
			l.advance()
		}
	}
	return nil
}

func (l *Lexer) quoted(quote rune, pos Pos) error {
	l.advance()
	for {
		switch l.peek(0) {
		case 0:
			return l.errorf(pos, "unterminated literal")
		case '\\':
			l.advance()
			l.advance()
		case quote:
			l.advance()
			l.suffix()
			return nil
		default:
			l.advance()
		}
	}
}

func (l *Lexer) rawString(pos Pos) error {
	hashes := 0
	for l.peek(0) == '#' {
		l.advance()
		hashes++
	}
	if l.peek(0) != '"' {
		return l.errorf(pos, "malformed raw string")
	}
	l.advance()
	closing := "\"" + strings.Repeat("#", hashes)
	for {
		if l.peek(0) == 0 {
			return l.errorf(pos, "unterminated raw string")
		}
		if strings.HasPrefix(l.src[l.off:], closing) {
			for range closing {
				l.advance()
			}
			return nil
		}
		l.advance()
	}
}

func (l *Lexer) number() {
	for isIdentContinue(l.peek(0)) {
		l.advance()
	}
	// 1.5 is a float, 1..5 is a range and 1.foo is a field access.
	if l.peek(0) == '.' && isDigit(l.peek(1)) {
		l.advance()
		for isIdentContinue(l.peek(0)) {
			l.advance()
		}
	}
}

// suffix consumes a literal suffix such as the u8 in b'a'u8.
func (l *Lexer) suffix() {
	if isIdentStart(l.peek(0)) {
		for isIdentContinue(l.peek(0)) {
			l.advance()
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// StringValue decodes a string literal token into its contents.
func StringValue(tok Token) (string, error) {
	if tok.Kind != String {
		return "", Errorf(tok.Pos, "expected string literal, found `%s`", tok.Text)
	}
	text := strings.TrimPrefix(tok.Text, "b")
	if strings.HasPrefix(text, "r") {
		text = strings.Trim(text[1:], "#")
		return text[1 : len(text)-1], nil
	}
	text = text[1 : len(text)-1]
	if !strings.Contains(text, `\`) {
		return text, nil
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 == len(text) {
			b.WriteByte(c)
			continue
		}
		i++
		switch text[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\', '"', '\'':
			b.WriteByte(text[i])
		case '\n':
			// line continuation skips the newline and leading whitespace
			for i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t' || text[i+1] == '\n') {
				i++
			}
		default:
			b.WriteByte('\\')
			b.WriteByte(text[i])
		}
	}
	return b.String(), nil
}

// QuoteString renders s as a Rust string literal.
func QuoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
