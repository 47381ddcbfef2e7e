package syntax

import (
	"strconv"
	"strings"
)

// PatternExpr is a parsed attribute: one or more alternative fragments and
// an optional where clause.
type PatternExpr struct {
	Name    string // from `name => ...`, informational only
	Pattern []PatFrag
	Clause  *Clause
}

// String renders the fragments the way they appear in diagnostics,
// e.g. `(T, T, U) | (T, U)`.
func (e *PatternExpr) String() string {
	parts := make([]string, len(e.Pattern))
	for i, f := range e.Pattern {
		parts[i] = f.String()
	}
	return strings.Join(parts, " | ")
}

// HasClause reports whether the expression has at least one predicate.
func (e *PatternExpr) HasClause() bool {
	return e.Clause != nil && len(e.Clause.Predicates) > 0
}

// PatFrag is one `|`-separated alternative of a pattern.
type PatFrag struct {
	Ident     *Token // discriminant name, nil when anonymous
	Dollar    bool   // written as $Ident
	Composite PatComposite
}

func (f PatFrag) String() string {
	var b strings.Builder
	if f.Ident != nil {
		if f.Dollar {
			b.WriteByte('$')
		}
		b.WriteString(f.Ident.Text)
	}
	if f.Composite.Kind == CompositeInferred {
		b.WriteByte('_')
		return b.String()
	}
	if f.Ident != nil && f.Composite.Kind == CompositeNamed {
		b.WriteByte(' ')
	}
	b.WriteString(f.Composite.String())
	return b.String()
}

// CompositeKind is the delimiter class of a fragment or variant.
type CompositeKind int

const (
	CompositeUnit     CompositeKind = iota // no fields
	CompositeUnnamed                       // ( ... )
	CompositeNamed                         // { ... }
	CompositeInferred                      // _
)

// String returns the kind name.
func (k CompositeKind) String() string {
	switch k {
	case CompositeUnit:
		return "Unit"
	case CompositeUnnamed:
		return "Unnamed"
	case CompositeNamed:
		return "Named"
	case CompositeInferred:
		return "Inferred"
	default:
		return "Unknown"
	}
}

// PatComposite is the delimited parameter group of a fragment.
type PatComposite struct {
	Kind   CompositeKind
	Params []PatFieldKind
	Pos    Pos
}

// Arity is the number of parameters, variadic markers included.
func (c PatComposite) Arity() int { return len(c.Params) }

// HasVariadic reports whether the last parameter is `..` or `..N`.
func (c PatComposite) HasVariadic() bool {
	n := len(c.Params)
	return n > 0 && c.Params[n-1].IsVariadic()
}

// Required returns the number of parameters that must be matched by a field.
func (c PatComposite) Required() int {
	if c.HasVariadic() {
		return len(c.Params) - 1
	}
	return len(c.Params)
}

func (c PatComposite) String() string {
	parts := make([]string, len(c.Params))
	for i, p := range c.Params {
		parts[i] = p.String()
	}
	switch c.Kind {
	case CompositeUnnamed:
		return "(" + strings.Join(parts, ", ") + ")"
	case CompositeNamed:
		return "{ " + strings.Join(parts, ", ") + " }"
	case CompositeInferred:
		return "_"
	default:
		return ""
	}
}

// FieldKindTag distinguishes the parameter forms of a composite.
type FieldKindTag int

const (
	FieldKindField    FieldKindTag = iota // [name:] Type
	FieldKindVariadic                     // ..
	FieldKindRange                        // ..N
)

// PatFieldKind is one parameter of a composite.
type PatFieldKind struct {
	Kind  FieldKindTag
	Name  *Token // named fields only
	Ty    *Type  // FieldKindField only
	Range int    // FieldKindRange only
	Pos   Pos
}

// IsVariadic reports whether p is `..` or `..N`.
func (p PatFieldKind) IsVariadic() bool {
	return p.Kind == FieldKindVariadic || p.Kind == FieldKindRange
}

// IsInfer reports whether p is the `_` placeholder type.
func (p PatFieldKind) IsInfer() bool {
	return p.Kind == FieldKindField && p.Ty.IsInfer()
}

func (p PatFieldKind) String() string {
	switch p.Kind {
	case FieldKindVariadic:
		return ".."
	case FieldKindRange:
		return ".." + strconv.Itoa(p.Range)
	}
	if p.Name != nil {
		return p.Name.Text + ": " + p.Ty.String()
	}
	return p.Ty.String()
}

// PredicateKind distinguishes where-clause predicate forms.
type PredicateKind int

const (
	PredicateType        PredicateKind = iota // T: A + B
	PredicateLifetime                         // 'a: 'b
	PredicateImpl                             // impl Trait for Type
	PredicateUnsupported                      // anything else
)

// WherePredicate is one comma-separated element of a where clause.
type WherePredicate struct {
	Kind      PredicateKind
	Lifetimes []Token // for<'a> binder, kept verbatim
	BoundedTy *Type   // PredicateType; the `for` type of PredicateImpl
	Bounds    []TypeBound
	Lifetime  *Token // PredicateLifetime
	Tokens    []Token
}

// Pos returns the first position of the predicate.
func (p WherePredicate) Pos() Pos {
	if len(p.Tokens) == 0 {
		return Pos{}
	}
	return p.Tokens[0].Pos
}

func (p WherePredicate) String() string { return Render(p.Tokens) }

// HasDispatch reports whether any bound is marked `^`, or p is an impl form.
func (p WherePredicate) HasDispatch() bool {
	if p.Kind == PredicateImpl {
		return true
	}
	for _, b := range p.Bounds {
		if b.Modifier == ModifierDispatch {
			return true
		}
	}
	return false
}

// Clause is an ordered list of where predicates.
type Clause struct {
	Predicates []WherePredicate
	Pos        Pos
}

// String renders the clause without the `where` keyword.
func (c *Clause) String() string {
	if c == nil {
		return ""
	}
	parts := make([]string, len(c.Predicates))
	for i, p := range c.Predicates {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

// NewTypePredicate builds `ty: bounds` with the tokens of every bound placed
// at pos, so that errors reported against the predicate point there.
func NewTypePredicate(ty *Type, bounds []TypeBound, pos Pos) WherePredicate {
	toks := retarget(ty.Tokens, pos)
	toks = append(toks, Synthetic(Punct, ":", pos))
	var out []TypeBound
	for i, b := range bounds {
		if i > 0 {
			toks = append(toks, Synthetic(Punct, "+", pos))
		}
		nb := b
		nb.Tokens = retarget(b.Tokens, pos)
		out = append(out, nb)
		toks = append(toks, nb.Tokens...)
	}
	bt := *ty
	bt.Tokens = retarget(ty.Tokens, pos)
	return WherePredicate{Kind: PredicateType, BoundedTy: &bt, Bounds: out, Tokens: toks}
}

// Binder returns the `for<...>` tokens that open p, or nil.
func (p WherePredicate) Binder() []Token {
	if len(p.Lifetimes) == 0 || len(p.Tokens) < len(p.Lifetimes)+3 || !p.Tokens[0].Is("for") {
		return nil
	}
	return p.Tokens[:len(p.Lifetimes)+3]
}

// WithBinder returns p prefixed with binder, placed at p's position.
func (p WherePredicate) WithBinder(binder []Token) WherePredicate {
	if len(binder) == 0 {
		return p
	}
	p.Tokens = append(retarget(binder, p.Pos()), p.Tokens...)
	p.Lifetimes = retarget(binder[2:len(binder)-1], p.Pos())
	return p
}

func retarget(toks []Token, pos Pos) []Token {
	out := make([]Token, len(toks))
	for i, t := range toks {
		out[i] = t.WithPos(pos)
	}
	return out
}

// Attribute is an outer attribute or doc comment attached to an item.
type Attribute struct {
	Tokens []Token
}

func (a Attribute) String() string { return Render(a.Tokens) }

// IsDoc reports whether a is a doc comment.
func (a Attribute) IsDoc() bool {
	return len(a.Tokens) == 1 && a.Tokens[0].Kind == DocComment
}

// Path returns the attribute path, e.g. "derive" for #[derive(Debug)].
func (a Attribute) Path() string {
	if a.IsDoc() || len(a.Tokens) < 3 {
		return ""
	}
	var b strings.Builder
	for _, t := range a.Tokens[2:] {
		if t.Kind != Ident && !t.Is("::") {
			break
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// GenericParam is one parameter of a generics list, kept verbatim.
type GenericParam struct {
	Name     Token   // the parameter identifier or lifetime
	Lifetime bool    // 'a
	Const    bool    // const N: usize
	Default  []Token // = Default, stripped for impl headers
	Tokens   []Token // the full parameter without its default
}

// Generics is the `<...>` list of an item plus its where clause.
type Generics struct {
	Params []GenericParam
	Where  *Clause
}

// IsEmpty reports whether there are no generic parameters.
func (g Generics) IsEmpty() bool { return len(g.Params) == 0 }

// ImplGenerics renders the generics for an impl header: `<T: Bound, 'a>`.
func (g Generics) ImplGenerics() string {
	if g.IsEmpty() {
		return ""
	}
	parts := make([]string, len(g.Params))
	for i, p := range g.Params {
		parts[i] = Render(p.Tokens)
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// TypeGenerics renders the generics as type arguments: `<T, 'a>`.
func (g Generics) TypeGenerics() string {
	if g.IsEmpty() {
		return ""
	}
	parts := make([]string, len(g.Params))
	for i, p := range g.Params {
		parts[i] = p.Name.Text
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// DeclGenerics renders the generics as declared, defaults included.
func (g Generics) DeclGenerics() string {
	if g.IsEmpty() {
		return ""
	}
	parts := make([]string, len(g.Params))
	for i, p := range g.Params {
		s := Render(p.Tokens)
		if len(p.Default) > 0 {
			s += " = " + Render(p.Default)
		}
		parts[i] = s
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// Names returns the declared parameter names.
func (g Generics) Names() []string {
	out := make([]string, len(g.Params))
	for i, p := range g.Params {
		out[i] = p.Name.Text
	}
	return out
}

// Subject is the enum declaration an attribute is attached to.
type Subject struct {
	Attrs    []Attribute
	Vis      []Token
	Ident    Token
	Generics Generics
	Variants []Variant
	Pos      Pos // position of the `enum` keyword
}

// Variant is one arm of the enum.
type Variant struct {
	Attrs        []Attribute
	Ident        Token
	Fields       Fields
	Discriminant []Token // `= expr`, without the equals sign
}

// String renders the variant the way diagnostics show it, e.g. `Bad(i32)`.
func (v Variant) String() string {
	return v.Ident.Text + v.Fields.String()
}

// Fields is the field list of a variant.
type Fields struct {
	Kind   CompositeKind // Unit, Unnamed or Named
	Fields []Field
}

// Len returns the number of fields.
func (f Fields) Len() int { return len(f.Fields) }

func (f Fields) String() string {
	parts := make([]string, len(f.Fields))
	for i, fd := range f.Fields {
		parts[i] = fd.String()
	}
	switch f.Kind {
	case CompositeUnnamed:
		return "(" + strings.Join(parts, ", ") + ")"
	case CompositeNamed:
		if len(parts) == 0 {
			return " {}"
		}
		return " { " + strings.Join(parts, ", ") + " }"
	default:
		return ""
	}
}

// Field is one field of a variant.
type Field struct {
	Attrs []Attribute
	Vis   []Token
	Name  *Token // nil for unnamed fields
	Ty    *Type
}

func (f Field) String() string {
	var b strings.Builder
	if len(f.Vis) > 0 {
		b.WriteString(Render(f.Vis) + " ")
	}
	if f.Name != nil {
		b.WriteString(f.Name.Text + ": ")
	}
	b.WriteString(f.Ty.String())
	return b.String()
}

// ItemTrait is a trait declaration, as stored in the dispatch registry.
type ItemTrait struct {
	Attrs       []Attribute
	Vis         []Token
	Ident       Token
	Generics    Generics
	Supertraits []TypeBound
	AssocTypes  []AssocType
	Methods     []TraitMethod
	Tokens      []Token // the complete declaration
}

// Name returns the trait name.
func (t *ItemTrait) Name() string { return t.Ident.Text }

func (t *ItemTrait) String() string { return Render(t.Tokens) }

// AssocType is `type Name: Bounds = Default;` inside a trait.
type AssocType struct {
	Ident   Token
	Bounds  []TypeBound
	Default *Type
}

// Receiver is the self parameter form of a method.
type Receiver int

const (
	ReceiverNone   Receiver = iota // associated function
	ReceiverValue                  // self
	ReceiverRef                    // &self
	ReceiverMutRef                 // &mut self
)

// TraitMethod is a method signature inside a trait.
type TraitMethod struct {
	Ident    Token
	Generics Generics
	Receiver Receiver
	// SelfTokens is the receiver exactly as written, e.g. `&'a mut self`.
	SelfTokens []Token
	Params     []FnParam
	Output     *Type // nil for ()
	Unsafe     bool
	Const      bool
	Async      bool
}

// FnParam is a non-receiver parameter.
type FnParam struct {
	Pat []Token
	Ty  *Type
}
