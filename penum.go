// Package penum expands shape-pattern attributes on Rust enums.
//
// An attribute such as
//
//	#[penum((T, U) | { name: T } where T: ^AsRef<str>)]
//
// checks that every variant of the enum it decorates matches one of the
// patterns, adds the bounds implied by the where clause to the enum's where
// clause, and generates an impl for each trait marked with `^` that forwards
// to the field bound to the pattern variable.
//
// Use New to create an Expander, then Expand for a single attribute or
// ExpandSource for a whole file:
//
//	x := penum.New().WithLogger(logger)
//	out, err := x.Expand("(T) where T: ^AsRef<str>", "enum E { V(String) }")
//	if err != nil {
//	    // err is a *diag.Error; diag.FromError(err).CompileError() renders it
//	    // as compile_error! invocations.
//	}
//	fmt.Print(out.Code)
package penum

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/viktorlott/enum-shape/diag"
	"github.com/viktorlott/enum-shape/dispatch"
	"github.com/viktorlott/enum-shape/engine"
	"github.com/viktorlott/enum-shape/expand"
	"github.com/viktorlott/enum-shape/internal/scan"
	"github.com/viktorlott/enum-shape/syntax"
)

// maxDepth bounds how many times ExpandSource re-scans its own output for
// attributes produced by an earlier expansion.
const maxDepth = 8

// Expander expands penum attributes.
type Expander struct {
	registry *dispatch.Registry
	logger   *slog.Logger
	stubs    bool
}

// New returns an Expander using the process-wide trait registry.
func New() *Expander {
	return &Expander{}
}

// WithRegistry sets the trait registry.
// If not set, dispatch.Default() will be used.
func (x *Expander) WithRegistry(reg *dispatch.Registry) *Expander {
	x.registry = reg
	return x
}

// WithLogger sets the logger.
// If not set, slog.Default() will be used.
func (x *Expander) WithLogger(logger *slog.Logger) *Expander {
	x.logger = logger
	return x
}

// WithAssertionStubs emits inferred bounds as assertion structs placed before
// the enum instead of extending its where clause.
func (x *Expander) WithAssertionStubs() *Expander {
	x.stubs = true
	return x
}

// Registry returns the registry used for dispatch.
func (x *Expander) Registry() *dispatch.Registry {
	if x.registry == nil {
		return dispatch.Default()
	}
	return x.registry
}

func (x *Expander) log() *slog.Logger {
	if x.logger == nil {
		return slog.Default()
	}
	return x.logger
}

// Output is the result of one expansion.
type Output struct {
	// Code is the expanded Rust source.
	Code string `json:"code"`

	// Bounds are the predicates propagated onto concrete types.
	Bounds []string `json:"bounds,omitempty"`

	// Impls is the number of generated impl blocks.
	Impls int `json:"impls"`

	// Traits lists the traits registered by the expansion.
	Traits []string `json:"traits,omitempty"`
}

// Expand applies the attribute arguments attr to input, an enum declaration.
// An empty attr registers input, which must then be a trait declaration, and
// returns it unchanged. Failures are returned as a *diag.Error.
func (x *Expander) Expand(attr, input string) (*Output, error) {
	attrToks, err := syntax.Lex("attr", attr)
	if err != nil {
		return nil, diag.FromError(err)
	}
	inputToks, err := syntax.Lex("input.rs", input)
	if err != nil {
		return nil, diag.FromError(err)
	}
	return x.expandTokens(attrToks, inputToks, input)
}

func (x *Expander) expandTokens(attr, input []syntax.Token, text string) (*Output, error) {
	if isEmpty(attr) {
		name, err := x.registerTokens(input)
		if err != nil {
			return nil, err
		}
		return &Output{Code: text, Traits: []string{name}}, nil
	}

	expr, err := syntax.ParsePatternExprTokens(attr)
	if err != nil {
		return nil, diag.FromError(err)
	}
	subject, err := syntax.ParseSubjectTokens(input)
	if err != nil {
		return nil, diag.FromError(err)
	}

	e := engine.New(expr, subject).WithRegistry(x.Registry()).WithLogger(x.log())
	if x.stubs {
		e = e.WithAssertionStubs()
	}
	out, err := e.Assemble().Emit()
	if err != nil {
		x.log().Debug("expansion failed",
			slog.String("enum", subject.Ident.Text),
			slog.Any("error", err))
		return nil, err
	}

	bounds := make([]string, len(out.Bounds))
	for i, b := range out.Bounds {
		bounds[i] = b.String()
	}
	return &Output{Code: out.String(), Bounds: bounds, Impls: len(out.Impls)}, nil
}

// ExpandAux runs one of the auxiliary expanders (to_string, fmt, into, deref,
// static_str) over input. arg is the target type for into and deref.
func (x *Expander) ExpandAux(kind expand.Kind, arg, input string) (*Output, error) {
	subject, err := syntax.ParseSubject("input.rs", input)
	if err != nil {
		return nil, diag.FromError(err)
	}
	return x.expandAux(kind, arg, subject)
}

func (x *Expander) expandAux(kind expand.Kind, arg string, subject *syntax.Subject) (*Output, error) {
	out, err := expand.Expand(kind, arg, subject)
	if err != nil {
		return nil, diag.FromError(err)
	}
	return &Output{Code: out.String(), Impls: len(out.Impls)}, nil
}

// RegisterTrait registers the trait declared in src for dispatch and
// returns its name. A trait already registered under that name is kept.
func (x *Expander) RegisterTrait(src string) (string, error) {
	toks, err := syntax.Lex("trait.rs", src)
	if err != nil {
		return "", diag.FromError(err)
	}
	return x.registerTokens(toks)
}

func (x *Expander) registerTokens(toks []syntax.Token) (string, error) {
	trait, err := syntax.ParseTraitTokens(toks)
	if err != nil {
		return "", diag.FromError(err)
	}
	if !x.Registry().Register(trait) {
		x.log().Debug("trait already registered", slog.String("trait", trait.Name()))
	}
	return trait.Name(), nil
}

// ExpandSource expands every attribute in a Rust source file and returns the
// rewritten file. Traits decorated with a bare #[penum] are registered before
// any enum is expanded. All failures are collected into one *diag.Error.
func (x *Expander) ExpandSource(file, src string) (string, error) {
	return x.expandSource(file, src, 0)
}

func (x *Expander) expandSource(file, src string, depth int) (string, error) {
	directives, err := scan.Scan(file, src)
	if err != nil {
		return "", diag.FromError(err)
	}
	if len(directives) == 0 {
		return src, nil
	}
	if depth >= maxDepth {
		return "", diag.FromError(fmt.Errorf("%s: attribute expansion nested more than %d levels deep", file, maxDepth))
	}

	var stash diag.Stash
	for _, d := range directives {
		if d.ItemKind != scan.ItemTrait {
			continue
		}
		if _, err := x.registerTokens(d.Item); err != nil {
			stash.AddError(diag.CodeParse, err)
		}
	}

	var b strings.Builder
	last := 0
	for _, d := range directives {
		b.WriteString(src[last:d.Start])
		last = d.End
		item := src[d.Item[0].Pos.Offset:d.End]
		if d.ItemKind == scan.ItemTrait {
			b.WriteString(item)
			continue
		}
		out, err := x.expandDirective(d)
		if err != nil {
			stash.AddError(diag.CodeParse, err)
			continue
		}
		b.WriteString(strings.TrimSuffix(out.Code, "\n"))
	}
	b.WriteString(src[last:])
	if err := stash.Err(); err != nil {
		return "", err
	}

	x.log().Debug("expanded source",
		slog.String("file", file),
		slog.Int("directives", len(directives)),
		slog.Int("depth", depth))
	return x.expandSource(file, b.String(), depth+1)
}

func (x *Expander) expandDirective(d scan.Directive) (*Output, error) {
	if d.Kind == scan.KindPenum {
		if d.Bare {
			return nil, diag.FromError(syntax.Errorf(d.Pos, "#[penum] on an enum needs a pattern"))
		}
		return x.expandTokens(d.Args, d.Item, "")
	}
	kind, ok := expand.ParseKind(string(d.Kind))
	if !ok {
		return nil, diag.FromError(syntax.Errorf(d.Pos, "unknown attribute #[%s]", d.Kind))
	}
	subject, err := syntax.ParseSubjectTokens(d.Item)
	if err != nil {
		return nil, diag.FromError(err)
	}
	return x.expandAux(kind, d.ArgsText(), subject)
}

func isEmpty(toks []syntax.Token) bool {
	return len(toks) == 0 || toks[0].Kind == syntax.EOF
}
