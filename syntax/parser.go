package syntax

import (
	"strconv"
)

// ParsePatternExpr parses an attribute body such as
//
//	(T, ..) | { name: T } where T: ^AsRef<str>
//
// The accepted forms are:
//   - `name => PATTERN` or `name = PATTERN`, the name is kept but unused
//   - a string literal whose contents are parsed as a pattern expression
//   - `PATTERN (| PATTERN)* [where PREDICATES]`
//   - `impl Trait for Type [, PREDICATES]`, shorthand for `_ where impl Trait for Type`
func ParsePatternExpr(file, src string) (*PatternExpr, error) {
	toks, err := Lex(file, src)
	if err != nil {
		return nil, err
	}
	return ParsePatternExprTokens(toks)
}

// ParsePatternExprTokens is ParsePatternExpr over an already lexed stream.
func ParsePatternExprTokens(toks []Token) (*PatternExpr, error) {
	p := newParser(toks)
	expr, err := p.patternExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return expr, nil
}

// ParseSubject parses an enum declaration, outer attributes included.
func ParseSubject(file, src string) (*Subject, error) {
	toks, err := Lex(file, src)
	if err != nil {
		return nil, err
	}
	return ParseSubjectTokens(toks)
}

// ParseSubjectTokens is ParseSubject over an already lexed stream.
func ParseSubjectTokens(toks []Token) (*Subject, error) {
	p := newParser(toks)
	s, err := p.subject()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseTrait parses a single trait declaration.
func ParseTrait(file, src string) (*ItemTrait, error) {
	toks, err := Lex(file, src)
	if err != nil {
		return nil, err
	}
	return ParseTraitTokens(toks)
}

// ParseTraitTokens is ParseTrait over an already lexed stream.
func ParseTraitTokens(toks []Token) (*ItemTrait, error) {
	p := newParser(toks)
	t, err := p.trait()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseTraits parses every trait declaration in src. `use` declarations and
// inner attributes are skipped; any other item is an error.
func ParseTraits(file, src string) ([]*ItemTrait, error) {
	toks, err := Lex(file, src)
	if err != nil {
		return nil, err
	}
	p := newParser(toks)
	var out []*ItemTrait
	for !p.atEOF() {
		switch {
		case p.at("use"):
			p.skipPast(";")
			continue
		case p.at("#") && p.peekAt(1).Is("!"):
			p.next()
			p.next()
			if _, err := p.balanced(); err != nil {
				return nil, err
			}
			continue
		case p.peek().Kind == DocComment && len(p.peek().Text) > 2 && p.peek().Text[2] == '!':
			p.next()
			continue
		}
		t, err := p.trait()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ParseType parses a single type.
func ParseType(file, src string) (*Type, error) {
	toks, err := Lex(file, src)
	if err != nil {
		return nil, err
	}
	return ParseTypeTokens(toks)
}

// ParseTypeTokens is ParseType over an already lexed stream.
func ParseTypeTokens(toks []Token) (*Type, error) {
	p := newParser(toks)
	ty, err := p.typ()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return ty, nil
}

// ParseBounds parses a `+`-separated bound list such as `Clone + ^AsRef<str>`.
func ParseBounds(file, src string) ([]TypeBound, error) {
	toks, err := Lex(file, src)
	if err != nil {
		return nil, err
	}
	p := newParser(toks)
	bs, err := p.bounds()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return bs, nil
}

type parser struct {
	toks []Token
	i    int
}

func newParser(toks []Token) *parser {
	if len(toks) == 0 || toks[len(toks)-1].Kind != EOF {
		var pos Pos
		if len(toks) > 0 {
			last := toks[len(toks)-1]
			pos = last.Pos
			pos.Offset = last.End
			pos.Column += len(last.Text)
		}
		toks = append(toks[:len(toks):len(toks)], Token{Kind: EOF, Pos: pos})
	}
	return &parser{toks: toks}
}

func (p *parser) peek() Token { return p.peekAt(0) }

func (p *parser) peekAt(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() Token {
	tok := p.peek()
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return tok
}

func (p *parser) at(text string) bool { return p.peek().Is(text) }

func (p *parser) atEOF() bool { return p.peek().Kind == EOF }

func (p *parser) eat(text string) bool {
	if p.at(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(text string) (Token, error) {
	if !p.at(text) {
		return Token{}, p.unexpected("`" + text + "`")
	}
	return p.next(), nil
}

func (p *parser) expectIdent() (Token, error) {
	tok := p.peek()
	if tok.Kind != Ident || (tok.IsKeyword() && tok.Text != "self" && tok.Text != "Self" && tok.Text != "crate" && tok.Text != "super") {
		return Token{}, p.unexpected("identifier")
	}
	return p.next(), nil
}

func (p *parser) expectEOF() error {
	if !p.atEOF() {
		return Errorf(p.peek().Pos, "unexpected token `%s`", p.peek().Text)
	}
	return nil
}

func (p *parser) unexpected(want string) error {
	tok := p.peek()
	if tok.Kind == EOF {
		return Errorf(tok.Pos, "expected %s, found end of input", want)
	}
	return Errorf(tok.Pos, "expected %s, found `%s`", want, tok.Text)
}

// since returns the tokens consumed from start up to the cursor.
func (p *parser) since(start int) []Token {
	out := make([]Token, p.i-start)
	copy(out, p.toks[start:p.i])
	return out
}

func (p *parser) skipPast(text string) {
	for !p.atEOF() && !p.at(text) {
		p.next()
	}
	p.eat(text)
}

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

// balanced consumes a delimited group starting at the cursor and returns its
// tokens, delimiters included.
func (p *parser) balanced() ([]Token, error) {
	open := p.peek()
	want, ok := closers[open.Text]
	if open.Kind != Punct || !ok {
		return nil, p.unexpected("`(`, `[` or `{`")
	}
	start := p.i
	stack := []string{want}
	p.next()
	for len(stack) > 0 {
		tok := p.next()
		switch {
		case tok.Kind == EOF:
			return nil, Errorf(open.Pos, "unclosed delimiter `%s`", open.Text)
		case tok.Kind != Punct:
		case closers[tok.Text] != "":
			stack = append(stack, closers[tok.Text])
		case tok.Text == ")" || tok.Text == "]" || tok.Text == "}":
			if tok.Text != stack[len(stack)-1] {
				return nil, Errorf(tok.Pos, "mismatched closing delimiter `%s`", tok.Text)
			}
			stack = stack[:len(stack)-1]
		}
	}
	return p.since(start), nil
}

// ---- pattern expressions ----

func (p *parser) patternExpr() (*PatternExpr, error) {
	expr := &PatternExpr{}
	if p.peek().Kind == Ident && (p.peekAt(1).Is("=>") || p.peekAt(1).Is("=")) {
		expr.Name = p.next().Text
		p.next()
	}

	if tok := p.peek(); tok.Kind == String {
		p.next()
		inner, err := p.stringPattern(tok)
		if err != nil {
			return nil, err
		}
		if inner.Name == "" {
			inner.Name = expr.Name
		}
		return inner, nil
	}

	if p.at("impl") {
		start := p.peek().Pos
		expr.Pattern = []PatFrag{{Composite: PatComposite{Kind: CompositeInferred, Pos: start}}}
		clause, err := p.predicates(start)
		if err != nil {
			return nil, err
		}
		expr.Clause = clause
		return expr, nil
	}

	frag, err := p.fragment()
	if err != nil {
		return nil, err
	}
	expr.Pattern = append(expr.Pattern, frag)
	for p.eat("|") {
		frag, err := p.fragment()
		if err != nil {
			return nil, err
		}
		expr.Pattern = append(expr.Pattern, frag)
	}

	if p.at("where") {
		clause, err := p.whereClause()
		if err != nil {
			return nil, err
		}
		expr.Clause = clause
	}
	return expr, nil
}

func (p *parser) stringPattern(tok Token) (*PatternExpr, error) {
	text, err := StringValue(tok)
	if err != nil {
		return nil, err
	}
	// Positions inside the literal point one column past the opening quote.
	pos := tok.Pos
	if pos.IsValid() {
		quote := 1
		for _, c := range tok.Text {
			if c == '"' {
				break
			}
			quote++
		}
		pos.Offset += quote
		pos.Column += quote
	}
	toks, err := LexAt(pos, text)
	if err != nil {
		return nil, err
	}
	return ParsePatternExprTokens(toks)
}

func (p *parser) fragment() (PatFrag, error) {
	var frag PatFrag
	if p.eat("$") {
		frag.Dollar = true
	}
	if p.at("_") {
		tok := p.next()
		frag.Composite = PatComposite{Kind: CompositeInferred, Pos: tok.Pos}
		return frag, nil
	}
	if tok := p.peek(); tok.Kind == Ident && !tok.IsKeyword() {
		p.next()
		frag.Ident = &tok
	} else if frag.Dollar {
		return frag, p.unexpected("identifier after `$`")
	}
	comp, err := p.composite()
	if err != nil {
		return frag, err
	}
	frag.Composite = comp
	return frag, nil
}

func (p *parser) composite() (PatComposite, error) {
	open := p.peek()
	var kind CompositeKind
	var close string
	switch {
	case open.Is("("):
		kind, close = CompositeUnnamed, ")"
	case open.Is("{"):
		kind, close = CompositeNamed, "}"
	default:
		return PatComposite{Kind: CompositeUnit, Pos: open.Pos}, nil
	}
	p.next()
	comp := PatComposite{Kind: kind, Pos: open.Pos}
	for !p.at(close) {
		param, err := p.patParam()
		if err != nil {
			return comp, err
		}
		if len(comp.Params) > 0 && comp.Params[len(comp.Params)-1].IsVariadic() {
			return comp, Errorf(param.Pos, "variadic `..` must be the last parameter")
		}
		comp.Params = append(comp.Params, param)
		if !p.eat(",") {
			break
		}
	}
	if _, err := p.expect(close); err != nil {
		return comp, err
	}
	if len(comp.Params) == 0 {
		comp.Kind = CompositeUnit
	}
	return comp, nil
}

func (p *parser) patParam() (PatFieldKind, error) {
	tok := p.peek()
	if tok.Is("..") {
		p.next()
		if lit := p.peek(); lit.Kind == Literal {
			n, err := strconv.Atoi(lit.Text)
			if err != nil {
				return PatFieldKind{}, Errorf(lit.Pos, "invalid range length `%s`", lit.Text)
			}
			p.next()
			return PatFieldKind{Kind: FieldKindRange, Range: n, Pos: tok.Pos}, nil
		}
		return PatFieldKind{Kind: FieldKindVariadic, Pos: tok.Pos}, nil
	}
	param := PatFieldKind{Kind: FieldKindField, Pos: tok.Pos}
	if tok.Kind == Ident && p.peekAt(1).Is(":") {
		p.next()
		p.next()
		param.Name = &tok
	}
	ty, err := p.typ()
	if err != nil {
		return param, err
	}
	param.Ty = ty
	return param, nil
}

// ---- where clauses ----

func (p *parser) whereClause() (*Clause, error) {
	kw, err := p.expect("where")
	if err != nil {
		return nil, err
	}
	return p.predicates(kw.Pos)
}

// predicates parses a comma-separated predicate list, stopping before `{`,
// `;` or the end of input.
func (p *parser) predicates(pos Pos) (*Clause, error) {
	clause := &Clause{Pos: pos}
	for !p.atEOF() && !p.at("{") && !p.at(";") {
		pred, err := p.predicate()
		if err != nil {
			return nil, err
		}
		clause.Predicates = append(clause.Predicates, pred)
		if !p.eat(",") {
			break
		}
	}
	return clause, nil
}

func (p *parser) predicate() (WherePredicate, error) {
	start := p.i
	switch tok := p.peek(); {
	case tok.Is("impl"):
		p.next()
		b, err := p.bound()
		if err != nil {
			return WherePredicate{}, err
		}
		if _, err := p.expect("for"); err != nil {
			return WherePredicate{}, err
		}
		ty, err := p.typ()
		if err != nil {
			return WherePredicate{}, err
		}
		return WherePredicate{Kind: PredicateImpl, BoundedTy: ty, Bounds: []TypeBound{b}, Tokens: p.since(start)}, nil

	case tok.Kind == Lifetime:
		p.next()
		pred := WherePredicate{Kind: PredicateLifetime, Lifetime: &tok}
		if _, err := p.expect(":"); err != nil {
			return pred, err
		}
		bs, err := p.bounds()
		if err != nil {
			return pred, err
		}
		pred.Bounds = bs
		pred.Tokens = p.since(start)
		return pred, nil
	}

	var pred WherePredicate
	if p.at("for") && p.peekAt(1).Is("<") {
		p.next()
		p.next()
		for !p.at(">") && !p.atEOF() {
			pred.Lifetimes = append(pred.Lifetimes, p.next())
		}
		if _, err := p.expect(">"); err != nil {
			return pred, err
		}
	}
	ty, err := p.typ()
	if err != nil {
		return pred, err
	}
	pred.BoundedTy = ty
	if !p.eat(":") {
		// Equality predicates and other forms are kept verbatim.
		for !p.atEOF() && !p.at(",") && !p.at("{") && !p.at(";") {
			if closers[p.peek().Text] != "" {
				if _, err := p.balanced(); err != nil {
					return pred, err
				}
				continue
			}
			p.next()
		}
		pred.Kind = PredicateUnsupported
		pred.Tokens = p.since(start)
		return pred, nil
	}
	bs, err := p.bounds()
	if err != nil {
		return pred, err
	}
	pred.Kind = PredicateType
	pred.Bounds = bs
	pred.Tokens = p.since(start)
	return pred, nil
}

// ---- bounds ----

func (p *parser) bounds() ([]TypeBound, error) {
	var out []TypeBound
	for p.startsBound() {
		b, err := p.bound()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		if !p.eat("+") {
			break
		}
	}
	return out, nil
}

func (p *parser) startsBound() bool {
	tok := p.peek()
	switch {
	case tok.Kind == Lifetime:
		return true
	case tok.Kind == Ident:
		return !tok.IsKeyword() || tok.Text == "for" || tok.Text == "crate" || tok.Text == "self" || tok.Text == "Self" || tok.Text == "super"
	}
	return tok.Is("^") || tok.Is("?") || tok.Is("::") || tok.Is("~") || tok.Is("(")
}

func (p *parser) bound() (TypeBound, error) {
	start := p.i
	if tok := p.peek(); tok.Kind == Lifetime {
		p.next()
		return TypeBound{Lifetime: &tok, Tokens: p.since(start)}, nil
	}
	if p.at("(") {
		// (Trait) parenthesised bound
		p.next()
		b, err := p.bound()
		if err != nil {
			return b, err
		}
		if _, err := p.expect(")"); err != nil {
			return b, err
		}
		b.Tokens = p.since(start)
		return b, nil
	}
	var b TypeBound
	switch {
	case p.eat("^"):
		b.Modifier = ModifierDispatch
	case p.eat("?"):
		b.Modifier = ModifierMaybe
	case p.at("~") && p.peekAt(1).Is("const"):
		p.next()
		p.next()
	}
	if p.at("for") && p.peekAt(1).Is("<") {
		p.next()
		p.next()
		for !p.at(">") && !p.atEOF() {
			p.next()
		}
		if _, err := p.expect(">"); err != nil {
			return b, err
		}
	}
	pathStart := p.i
	path, err := p.path()
	if err != nil {
		return b, err
	}
	b.Trait = &Type{Kind: TypePath, Path: path, Tokens: p.since(pathStart)}
	b.Tokens = p.since(start)
	return b, nil
}

// ---- types ----

func (p *parser) typ() (*Type, error) {
	start := p.i
	tok := p.peek()
	switch {
	case tok.Is("_"):
		p.next()
		return &Type{Kind: TypeInfer, Tokens: p.since(start)}, nil

	case tok.Is("!"):
		p.next()
		return &Type{Kind: TypeNever, Tokens: p.since(start)}, nil

	case tok.Is("&&"):
		// &&T is a reference to a reference.
		p.next()
		ty := &Type{Kind: TypeRef}
		if p.peek().Kind == Lifetime {
			p.next()
		}
		ty.Mut = p.eat("mut")
		elem, err := p.typ()
		if err != nil {
			return nil, err
		}
		innerToks := append([]Token{Synthetic(Punct, "&", tok.Pos)}, p.toks[start+1:p.i]...)
		inner := &Type{Kind: TypeRef, Mut: ty.Mut, Elem: elem, Tokens: innerToks}
		return &Type{Kind: TypeRef, Elem: inner, Tokens: p.since(start)}, nil

	case tok.Is("&"):
		p.next()
		ty := &Type{Kind: TypeRef}
		if p.peek().Kind == Lifetime {
			p.next()
		}
		ty.Mut = p.eat("mut")
		elem, err := p.typ()
		if err != nil {
			return nil, err
		}
		ty.Elem = elem
		ty.Tokens = p.since(start)
		return ty, nil

	case tok.Is("*"):
		p.next()
		ty := &Type{Kind: TypePtr}
		switch {
		case p.eat("mut"):
			ty.Mut = true
		case p.eat("const"):
		default:
			return nil, p.unexpected("`const` or `mut`")
		}
		elem, err := p.typ()
		if err != nil {
			return nil, err
		}
		ty.Elem = elem
		ty.Tokens = p.since(start)
		return ty, nil

	case tok.Is("("):
		p.next()
		var elems []*Type
		trailing := false
		for !p.at(")") {
			elem, err := p.typ()
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
			trailing = p.eat(",")
			if !trailing {
				break
			}
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		if len(elems) == 1 && !trailing {
			return &Type{Kind: TypeParen, Elem: elems[0], Tokens: p.since(start)}, nil
		}
		return &Type{Kind: TypeTuple, Elems: elems, Tokens: p.since(start)}, nil

	case tok.Is("["):
		p.next()
		elem, err := p.typ()
		if err != nil {
			return nil, err
		}
		kind := TypeSlice
		if p.eat(";") {
			kind = TypeArray
			for !p.at("]") {
				if p.atEOF() {
					return nil, p.unexpected("`]`")
				}
				if closers[p.peek().Text] != "" {
					if _, err := p.balanced(); err != nil {
						return nil, err
					}
					continue
				}
				p.next()
			}
		}
		if _, err := p.expect("]"); err != nil {
			return nil, err
		}
		return &Type{Kind: kind, Elem: elem, Tokens: p.since(start)}, nil

	case tok.Is("impl"), tok.Is("dyn"):
		p.next()
		bs, err := p.bounds()
		if err != nil {
			return nil, err
		}
		if len(bs) == 0 {
			return nil, p.unexpected("trait bound")
		}
		kind := TypeImpl
		if tok.Text == "dyn" {
			kind = TypeDyn
		}
		return &Type{Kind: kind, Bounds: bs, Tokens: p.since(start)}, nil

	case tok.Is("fn"), tok.Is("unsafe"), tok.Is("extern"), tok.Is("for") && p.peekAt(1).Is("<"):
		return p.fnType()

	case tok.Is("<"):
		return p.qualifiedType()
	}

	path, err := p.path()
	if err != nil {
		return nil, err
	}
	return &Type{Kind: TypePath, Path: path, Tokens: p.since(start)}, nil
}

func (p *parser) fnType() (*Type, error) {
	start := p.i
	if p.at("for") {
		p.next()
		p.next()
		for !p.at(">") && !p.atEOF() {
			p.next()
		}
		if _, err := p.expect(">"); err != nil {
			return nil, err
		}
	}
	p.eat("unsafe")
	if p.eat("extern") && p.peek().Kind == String {
		p.next()
	}
	if _, err := p.expect("fn"); err != nil {
		return nil, err
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	ty := &Type{Kind: TypeFn}
	for !p.at(")") {
		if p.at("...") {
			p.next()
			break
		}
		if p.peek().Kind == Ident && p.peekAt(1).Is(":") {
			p.next()
			p.next()
		}
		elem, err := p.typ()
		if err != nil {
			return nil, err
		}
		ty.Elems = append(ty.Elems, elem)
		if !p.eat(",") {
			break
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	if p.eat("->") {
		out, err := p.typ()
		if err != nil {
			return nil, err
		}
		ty.Elem = out
	}
	ty.Tokens = p.since(start)
	return ty, nil
}

func (p *parser) qualifiedType() (*Type, error) {
	start := p.i
	p.next()
	if _, err := p.typ(); err != nil {
		return nil, err
	}
	if p.eat("as") {
		if _, err := p.path(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(">"); err != nil {
		return nil, err
	}
	for p.eat("::") {
		if _, err := p.segment(); err != nil {
			return nil, err
		}
	}
	return &Type{Kind: TypeQualified, Tokens: p.since(start)}, nil
}

func (p *parser) path() (*Path, error) {
	path := &Path{}
	if p.eat("::") {
		path.Leading = true
	}
	for {
		seg, err := p.segment()
		if err != nil {
			return nil, err
		}
		path.Segments = append(path.Segments, seg)
		// `::<` is a turbofish on the segment just parsed, handled there.
		if !p.at("::") || p.peekAt(1).Is("<") {
			break
		}
		p.next()
	}
	return path, nil
}

func (p *parser) segment() (PathSegment, error) {
	ident, err := p.expectIdent()
	if err != nil {
		return PathSegment{}, err
	}
	seg := PathSegment{Ident: ident}
	if p.at("::") && p.peekAt(1).Is("<") {
		p.next()
	}
	switch {
	case p.at("<"):
		p.next()
		seg.Angled = true
		for !p.at(">") {
			arg, err := p.genericArg()
			if err != nil {
				return seg, err
			}
			seg.Args = append(seg.Args, arg)
			if !p.eat(",") {
				break
			}
		}
		if _, err := p.expect(">"); err != nil {
			return seg, err
		}
	case p.at("(") && isFnTrait(ident.Text):
		p.next()
		seg.Paren = true
		for !p.at(")") {
			in, err := p.typ()
			if err != nil {
				return seg, err
			}
			seg.Inputs = append(seg.Inputs, in)
			if !p.eat(",") {
				break
			}
		}
		if _, err := p.expect(")"); err != nil {
			return seg, err
		}
		if p.eat("->") {
			out, err := p.typ()
			if err != nil {
				return seg, err
			}
			seg.Output = out
		}
	}
	return seg, nil
}

func isFnTrait(name string) bool {
	return name == "Fn" || name == "FnMut" || name == "FnOnce"
}

func (p *parser) genericArg() (GenericArg, error) {
	start := p.i
	tok := p.peek()
	switch {
	case tok.Kind == Lifetime:
		p.next()
		return GenericArg{Lifetime: &tok, Tokens: p.since(start)}, nil

	case tok.Kind == Ident && p.peekAt(1).Is("=") && !tok.IsKeyword():
		p.next()
		p.next()
		ty, err := p.typ()
		if err != nil {
			return GenericArg{}, err
		}
		return GenericArg{Binding: &tok, Type: ty, Tokens: p.since(start)}, nil

	case tok.Kind == Ident && p.peekAt(1).Is(":") && !tok.IsKeyword():
		// Associated type constraint: Item: Display.
		p.next()
		p.next()
		if _, err := p.bounds(); err != nil {
			return GenericArg{}, err
		}
		return GenericArg{Binding: &tok, Tokens: p.since(start)}, nil

	case tok.Kind == Literal, tok.Kind == String, tok.Is("-"):
		p.next()
		if tok.Is("-") {
			p.next()
		}
		return GenericArg{Tokens: p.since(start)}, nil

	case tok.Is("{"):
		if _, err := p.balanced(); err != nil {
			return GenericArg{}, err
		}
		return GenericArg{Tokens: p.since(start)}, nil
	}
	ty, err := p.typ()
	if err != nil {
		return GenericArg{}, err
	}
	return GenericArg{Type: ty, Tokens: p.since(start)}, nil
}

// ---- items ----

func (p *parser) attrs() ([]Attribute, error) {
	var out []Attribute
	for {
		tok := p.peek()
		switch {
		case tok.Kind == DocComment:
			p.next()
			out = append(out, Attribute{Tokens: []Token{tok}})
		case tok.Is("#") && p.peekAt(1).Is("["):
			start := p.i
			p.next()
			if _, err := p.balanced(); err != nil {
				return nil, err
			}
			out = append(out, Attribute{Tokens: p.since(start)})
		default:
			return out, nil
		}
	}
}

func (p *parser) visibility() ([]Token, error) {
	if !p.at("pub") {
		return nil, nil
	}
	start := p.i
	p.next()
	if p.at("(") {
		if _, err := p.balanced(); err != nil {
			return nil, err
		}
	}
	return p.since(start), nil
}

func (p *parser) generics() (Generics, error) {
	var g Generics
	if !p.eat("<") {
		return g, nil
	}
	for !p.at(">") {
		param, err := p.genericParam()
		if err != nil {
			return g, err
		}
		g.Params = append(g.Params, param)
		if !p.eat(",") {
			break
		}
	}
	_, err := p.expect(">")
	return g, err
}

func (p *parser) genericParam() (GenericParam, error) {
	start := p.i
	var gp GenericParam
	switch tok := p.peek(); {
	case tok.Kind == Lifetime:
		p.next()
		gp.Name, gp.Lifetime = tok, true
		if p.eat(":") {
			if _, err := p.bounds(); err != nil {
				return gp, err
			}
		}
	case tok.Is("const"):
		p.next()
		name, err := p.expectIdent()
		if err != nil {
			return gp, err
		}
		gp.Name, gp.Const = name, true
		if _, err := p.expect(":"); err != nil {
			return gp, err
		}
		if _, err := p.typ(); err != nil {
			return gp, err
		}
	default:
		name, err := p.expectIdent()
		if err != nil {
			return gp, err
		}
		gp.Name = name
		if p.eat(":") {
			if _, err := p.bounds(); err != nil {
				return gp, err
			}
		}
	}
	gp.Tokens = p.since(start)
	if p.eat("=") {
		defStart := p.i
		if p.at("{") {
			if _, err := p.balanced(); err != nil {
				return gp, err
			}
		} else if tok := p.peek(); tok.Kind == Literal {
			p.next()
		} else if _, err := p.typ(); err != nil {
			return gp, err
		}
		gp.Default = p.since(defStart)
	}
	return gp, nil
}

func (p *parser) subject() (*Subject, error) {
	attrs, err := p.attrs()
	if err != nil {
		return nil, err
	}
	vis, err := p.visibility()
	if err != nil {
		return nil, err
	}
	kw := p.peek()
	if !kw.Is("enum") {
		return nil, Errorf(kw.Pos, "expected enum declaration, found `%s`", kw)
	}
	p.next()
	ident, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	s := &Subject{Attrs: attrs, Vis: vis, Ident: ident, Pos: kw.Pos}
	if s.Generics, err = p.generics(); err != nil {
		return nil, err
	}
	if p.at("where") {
		if s.Generics.Where, err = p.whereClause(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	for !p.at("}") {
		v, err := p.variant()
		if err != nil {
			return nil, err
		}
		s.Variants = append(s.Variants, v)
		if !p.eat(",") {
			break
		}
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) variant() (Variant, error) {
	var v Variant
	attrs, err := p.attrs()
	if err != nil {
		return v, err
	}
	v.Attrs = attrs
	if v.Ident, err = p.expectIdent(); err != nil {
		return v, err
	}
	switch {
	case p.at("("):
		v.Fields.Kind = CompositeUnnamed
		v.Fields.Fields, err = p.fields(")", false)
	case p.at("{"):
		v.Fields.Kind = CompositeNamed
		v.Fields.Fields, err = p.fields("}", true)
	default:
		v.Fields.Kind = CompositeUnit
	}
	if err != nil {
		return v, err
	}
	if p.eat("=") {
		start := p.i
		for !p.atEOF() && !p.at(",") && !p.at("}") {
			if closers[p.peek().Text] != "" && p.peek().Kind == Punct {
				if _, err := p.balanced(); err != nil {
					return v, err
				}
				continue
			}
			p.next()
		}
		v.Discriminant = p.since(start)
		if len(v.Discriminant) == 0 {
			return v, p.unexpected("discriminant expression")
		}
	}
	return v, nil
}

func (p *parser) fields(close string, named bool) ([]Field, error) {
	p.next()
	var out []Field
	for !p.at(close) {
		var f Field
		var err error
		if f.Attrs, err = p.attrs(); err != nil {
			return nil, err
		}
		if f.Vis, err = p.visibility(); err != nil {
			return nil, err
		}
		if named {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			f.Name = &name
			if _, err := p.expect(":"); err != nil {
				return nil, err
			}
		}
		if f.Ty, err = p.typ(); err != nil {
			return nil, err
		}
		out = append(out, f)
		if !p.eat(",") {
			break
		}
	}
	if _, err := p.expect(close); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) trait() (*ItemTrait, error) {
	start := p.i
	attrs, err := p.attrs()
	if err != nil {
		return nil, err
	}
	vis, err := p.visibility()
	if err != nil {
		return nil, err
	}
	p.eat("unsafe")
	p.eat("auto")
	kw := p.peek()
	if !kw.Is("trait") {
		return nil, Errorf(kw.Pos, "expected trait declaration, found `%s`", kw)
	}
	p.next()
	ident, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	t := &ItemTrait{Attrs: attrs, Vis: vis, Ident: ident}
	if t.Generics, err = p.generics(); err != nil {
		return nil, err
	}
	if p.eat(":") {
		if t.Supertraits, err = p.bounds(); err != nil {
			return nil, err
		}
	}
	if p.at("where") {
		if t.Generics.Where, err = p.whereClause(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	for !p.at("}") {
		if p.atEOF() {
			return nil, p.unexpected("`}`")
		}
		if _, err := p.attrs(); err != nil {
			return nil, err
		}
		switch {
		case p.at("type"):
			at, err := p.assocType()
			if err != nil {
				return nil, err
			}
			t.AssocTypes = append(t.AssocTypes, at)
		case p.at("const") && !p.peekAt(1).Is("fn") && !p.peekAt(1).Is("unsafe"):
			p.skipPast(";")
		case p.at("}"):
		default:
			m, err := p.traitMethod()
			if err != nil {
				return nil, err
			}
			t.Methods = append(t.Methods, m)
		}
	}
	p.next()
	t.Tokens = p.since(start)
	return t, nil
}

func (p *parser) assocType() (AssocType, error) {
	p.next()
	var at AssocType
	ident, err := p.expectIdent()
	if err != nil {
		return at, err
	}
	at.Ident = ident
	if p.at("<") {
		if _, err := p.generics(); err != nil {
			return at, err
		}
	}
	if p.eat(":") {
		if at.Bounds, err = p.bounds(); err != nil {
			return at, err
		}
	}
	if p.at("where") {
		if _, err := p.whereClause(); err != nil {
			return at, err
		}
	}
	if p.eat("=") {
		if at.Default, err = p.typ(); err != nil {
			return at, err
		}
	}
	_, err = p.expect(";")
	return at, err
}

func (p *parser) traitMethod() (TraitMethod, error) {
	var m TraitMethod
	for {
		switch {
		case p.eat("const"):
			m.Const = true
			continue
		case p.eat("async"):
			m.Async = true
			continue
		case p.eat("unsafe"):
			m.Unsafe = true
			continue
		case p.at("extern"):
			p.next()
			if p.peek().Kind == String {
				p.next()
			}
			continue
		}
		break
	}
	if _, err := p.expect("fn"); err != nil {
		return m, err
	}
	ident, err := p.expectIdent()
	if err != nil {
		return m, err
	}
	m.Ident = ident
	if m.Generics, err = p.generics(); err != nil {
		return m, err
	}
	if _, err := p.expect("("); err != nil {
		return m, err
	}
	if err := p.receiver(&m); err != nil {
		return m, err
	}
	for !p.at(")") {
		param, err := p.fnParam()
		if err != nil {
			return m, err
		}
		m.Params = append(m.Params, param)
		if !p.eat(",") {
			break
		}
	}
	if _, err := p.expect(")"); err != nil {
		return m, err
	}
	if p.eat("->") {
		if m.Output, err = p.typ(); err != nil {
			return m, err
		}
	}
	if p.at("where") {
		if m.Generics.Where, err = p.whereClause(); err != nil {
			return m, err
		}
	}
	switch {
	case p.eat(";"):
	case p.at("{"):
		if _, err := p.balanced(); err != nil {
			return m, err
		}
	default:
		return m, p.unexpected("`;` or method body")
	}
	return m, nil
}

// receiver consumes a self parameter if present, including its trailing comma.
func (p *parser) receiver(m *TraitMethod) error {
	start := p.i
	switch {
	case p.at("self"), p.at("mut") && p.peekAt(1).Is("self"):
		p.eat("mut")
		p.next()
		m.Receiver = ReceiverValue
		if p.eat(":") {
			ty, err := p.typ()
			if err != nil {
				return err
			}
			if ty.Kind == TypeRef {
				m.Receiver = ReceiverRef
				if ty.Mut {
					m.Receiver = ReceiverMutRef
				}
			}
		}
	case p.at("&"):
		n := 1
		if p.peekAt(n).Kind == Lifetime {
			n++
		}
		mut := p.peekAt(n).Is("mut")
		if mut {
			n++
		}
		if !p.peekAt(n).Is("self") {
			return nil
		}
		for i := 0; i <= n; i++ {
			p.next()
		}
		m.Receiver = ReceiverRef
		if mut {
			m.Receiver = ReceiverMutRef
		}
	default:
		return nil
	}
	m.SelfTokens = p.since(start)
	p.eat(",")
	return nil
}

func (p *parser) fnParam() (FnParam, error) {
	var fp FnParam
	if _, err := p.attrs(); err != nil {
		return fp, err
	}
	start := p.i
	depth := 0
	for !p.atEOF() {
		tok := p.peek()
		if depth == 0 && tok.Is(":") {
			break
		}
		switch {
		case tok.Is("("), tok.Is("["), tok.Is("{"):
			depth++
		case tok.Is(")"), tok.Is("]"), tok.Is("}"):
			depth--
		}
		p.next()
	}
	fp.Pat = p.since(start)
	if len(fp.Pat) == 0 {
		return fp, p.unexpected("parameter pattern")
	}
	if _, err := p.expect(":"); err != nil {
		return fp, err
	}
	ty, err := p.typ()
	if err != nil {
		return fp, err
	}
	fp.Ty = ty
	return fp, nil
}
