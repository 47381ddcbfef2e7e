package syntax

import (
	"hash/fnv"
	"strings"
)

// TypeKind identifies the shape of a type expression.
type TypeKind int

const (
	TypePath  TypeKind = iota // a::B<C, D = E>
	TypeRef                   // &'a mut T
	TypePtr                   // *const T
	TypeTuple                 // (A, B)
	TypeParen                 // (T)
	TypeSlice                 // [T]
	TypeArray                 // [T; N]
	TypeImpl                  // impl A + B
	TypeDyn                   // dyn A + B
	TypeFn                    // fn(A) -> B
	TypeInfer                 // _
	TypeNever                 // !
	TypeQualified             // <T as Trait>::Assoc
)

// String returns the kind name.
func (k TypeKind) String() string {
	switch k {
	case TypePath:
		return "Path"
	case TypeRef:
		return "Ref"
	case TypePtr:
		return "Ptr"
	case TypeTuple:
		return "Tuple"
	case TypeParen:
		return "Paren"
	case TypeSlice:
		return "Slice"
	case TypeArray:
		return "Array"
	case TypeImpl:
		return "Impl"
	case TypeDyn:
		return "Dyn"
	case TypeFn:
		return "Fn"
	case TypeInfer:
		return "Infer"
	case TypeNever:
		return "Never"
	case TypeQualified:
		return "Qualified"
	default:
		return "Unknown"
	}
}

// Type is a parsed type expression. Tokens always holds the complete source
// spelling; the structured fields are filled in for the kinds that need them.
type Type struct {
	Kind   TypeKind
	Tokens []Token

	Path   *Path       // TypePath
	Elem   *Type       // TypeRef, TypePtr, TypeParen, TypeSlice, TypeArray
	Elems  []*Type     // TypeTuple
	Bounds []TypeBound // TypeImpl, TypeDyn
	Mut    bool        // TypeRef, TypePtr
}

// Pos returns the position of the first token.
func (t *Type) Pos() Pos {
	if t == nil || len(t.Tokens) == 0 {
		return Pos{}
	}
	return t.Tokens[0].Pos
}

func (t *Type) String() string {
	if t == nil {
		return ""
	}
	return Render(t.Tokens)
}

// ID returns the canonical id of t.
func (t *Type) ID() UniqueID { return NewUniqueID(t.String()) }

// IsInfer reports whether t is the `_` placeholder.
func (t *Type) IsInfer() bool { return t != nil && t.Kind == TypeInfer }

// IsGeneric reports whether t names a pattern type variable: a single bare
// identifier spelled [A-Z][A-Z0-9_]*.
func (t *Type) IsGeneric() bool {
	if t == nil || t.Kind != TypePath || len(t.Tokens) != 1 {
		return false
	}
	return IsGenericName(t.Tokens[0].Text)
}

// IsGenericName reports whether name matches [A-Z][A-Z0-9_]*.
func IsGenericName(name string) bool {
	if name == "" || name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

// IsUnit reports whether t is the empty tuple.
func (t *Type) IsUnit() bool {
	return t != nil && t.Kind == TypeTuple && len(t.Elems) == 0
}

// IsStrRef reports whether t is &str with any lifetime.
func (t *Type) IsStrRef() bool {
	if t == nil || t.Kind != TypeRef || t.Mut || t.Elem == nil {
		return false
	}
	e := t.Elem
	return e.Kind == TypePath && len(e.Tokens) == 1 && e.Tokens[0].Text == "str"
}

// Path is a possibly qualified path such as std::convert::AsRef<str>.
type Path struct {
	Leading  bool // leading ::
	Segments []PathSegment
}

// Last returns the final segment.
func (p *Path) Last() PathSegment {
	if p == nil || len(p.Segments) == 0 {
		return PathSegment{}
	}
	return p.Segments[len(p.Segments)-1]
}

// PathSegment is one `ident<args>` component of a path.
type PathSegment struct {
	Ident  Token
	Args   []GenericArg // angle-bracketed arguments
	Angled bool         // true when <...> was written, even if empty

	// Parenthesized sugar: Fn(A, B) -> C
	Paren  bool
	Inputs []*Type
	Output *Type
}

// GenericArg is one argument inside <...>.
type GenericArg struct {
	Lifetime *Token // 'a
	Binding  *Token // Name in `Name = Type`
	Type     *Type  // type argument or binding value
	Tokens   []Token
}

// IsBinding reports whether the argument is an associated-type binding.
func (a GenericArg) IsBinding() bool { return a.Binding != nil }

// Modifier is the prefix sigil of a trait bound.
type Modifier int

const (
	ModifierNone     Modifier = iota
	ModifierDispatch          // ^Trait
	ModifierMaybe             // ?Trait
)

// String returns the sigil.
func (m Modifier) String() string {
	switch m {
	case ModifierDispatch:
		return "^"
	case ModifierMaybe:
		return "?"
	default:
		return ""
	}
}

// TypeBound is one `+`-separated element of a bound list.
type TypeBound struct {
	Modifier Modifier
	Lifetime *Token // set for lifetime bounds, Trait is nil then
	Trait    *Type  // a TypePath
	Tokens   []Token
}

// Pos returns the bound's first position.
func (b TypeBound) Pos() Pos {
	if len(b.Tokens) == 0 {
		return Pos{}
	}
	return b.Tokens[0].Pos
}

// IsLifetime reports whether the bound is a lifetime.
func (b TypeBound) IsLifetime() bool { return b.Lifetime != nil }

// Path returns the trait path of the bound, or nil for lifetimes.
func (b TypeBound) Path() *Path {
	if b.Trait == nil {
		return nil
	}
	return b.Trait.Path
}

// Name returns the last path segment of the trait, e.g. AsRef for
// std::convert::AsRef<str>.
func (b TypeBound) Name() string {
	return b.Path().Last().Ident.Text
}

// Unmodified returns the bound's tokens without its modifier sigil.
func (b TypeBound) Unmodified() []Token {
	if b.Modifier != ModifierNone && len(b.Tokens) > 0 {
		return b.Tokens[1:]
	}
	return b.Tokens
}

func (b TypeBound) String() string { return Render(b.Tokens) }

// Bindings returns the associated-type bindings written on the trait's last
// segment, e.g. Input = str in Abc<Input = str>.
func (b TypeBound) Bindings() []GenericArg {
	var out []GenericArg
	for _, a := range b.Path().Last().Args {
		if a.IsBinding() {
			out = append(out, a)
		}
	}
	return out
}

// Positional returns the non-binding arguments of the trait's last segment.
func (b TypeBound) Positional() []GenericArg {
	var out []GenericArg
	for _, a := range b.Path().Last().Args {
		if !a.IsBinding() {
			out = append(out, a)
		}
	}
	return out
}

// SanitizedPath renders the trait path of b with the modifier and any
// associated-type bindings removed, which is the form an impl header needs.
func (b TypeBound) SanitizedPath() string {
	p := b.Path()
	if p == nil {
		return ""
	}
	var sb strings.Builder
	if p.Leading {
		sb.WriteString("::")
	}
	for i, seg := range p.Segments {
		if i > 0 {
			sb.WriteString("::")
		}
		sb.WriteString(seg.Ident.Text)
		if seg.Paren {
			sb.WriteString(Render(segmentTail(seg)))
			continue
		}
		var args []string
		for _, a := range seg.Args {
			if a.IsBinding() && i == len(p.Segments)-1 {
				continue
			}
			args = append(args, Render(a.Tokens))
		}
		if len(args) > 0 {
			sb.WriteString("<" + strings.Join(args, ", ") + ">")
		}
	}
	return sb.String()
}

func segmentTail(seg PathSegment) []Token {
	var toks []Token
	toks = append(toks, Synthetic(Punct, "(", Pos{}))
	for i, in := range seg.Inputs {
		if i > 0 {
			toks = append(toks, Synthetic(Punct, ",", Pos{}))
		}
		toks = append(toks, in.Tokens...)
	}
	toks = append(toks, Synthetic(Punct, ")", Pos{}))
	if seg.Output != nil {
		toks = append(toks, Synthetic(Punct, "->", Pos{}))
		toks = append(toks, seg.Output.Tokens...)
	}
	return toks
}

// UniqueID is the canonical identity of a type: its normalised rendering
// plus an FNV-1a hash of that rendering. Two types are equal iff their ids
// are equal.
type UniqueID struct {
	Text string
	Hash uint64
}

// NewUniqueID derives the id for an already rendered type.
func NewUniqueID(text string) UniqueID {
	h := fnv.New64a()
	h.Write([]byte(text))
	return UniqueID{Text: text, Hash: h.Sum64()}
}

func (id UniqueID) String() string { return id.Text }

// IsZero reports whether id is unset.
func (id UniqueID) IsZero() bool { return id.Text == "" }
