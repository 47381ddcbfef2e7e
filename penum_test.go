package penum

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/viktorlott/enum-shape/diag"
	"github.com/viktorlott/enum-shape/dispatch"
	"github.com/viktorlott/enum-shape/expand"
)

func newExpander() *Expander {
	logger := slog.New(slog.DiscardHandler)
	return New().WithRegistry(dispatch.NewStdRegistry().WithLogger(logger)).WithLogger(logger)
}

func TestExpand(t *testing.T) {
	x := newExpander()
	out, err := x.Expand("(T) where T: ^AsRef<str>", "enum E { V1(String), V2(&'static str) }")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if out.Impls != 1 {
		t.Errorf("Impls = %d, want 1", out.Impls)
	}
	wantBounds := []string{"String: AsRef<str>", "&'static str: AsRef<str>"}
	if strings.Join(out.Bounds, "; ") != strings.Join(wantBounds, "; ") {
		t.Errorf("Bounds = %q, want %q", out.Bounds, wantBounds)
	}
	for _, want := range []string{
		"impl AsRef<str> for E {",
		"E::V1(val) => val.as_ref(),",
		"E::V2(val) => val.as_ref(),",
	} {
		if !strings.Contains(out.Code, want) {
			t.Errorf("Code missing %q:\n%s", want, out.Code)
		}
	}
}

func TestExpandErrors(t *testing.T) {
	tests := []struct {
		name     string
		attr     string
		input    string
		wantCode diag.Code
		wantMsg  string
	}{
		{
			name:     "shape mismatch",
			attr:     "(T, U)",
			input:    "enum E { V(i32) }",
			wantCode: diag.CodeNoMatch,
			wantMsg:  "`V(..)` doesn't match pattern `(T, U)`",
		},
		{
			name:     "concrete type mismatch",
			attr:     "(i32)",
			input:    "enum E { V(u8) }",
			wantCode: diag.CodeTypeMismatch,
			wantMsg:  "Found `u8` but expected `i32`.",
		},
		{
			name:     "no variants",
			attr:     "(T)",
			input:    "enum E {}",
			wantCode: diag.CodeEmptyVariants,
			wantMsg:  "Expected to find at least one variant.",
		},
		{
			name:     "unparsable pattern",
			attr:     "(T",
			input:    "enum E { V(i32) }",
			wantCode: diag.CodeParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newExpander().Expand(tt.attr, tt.input)
			var de *diag.Error
			if !errors.As(err, &de) {
				t.Fatalf("Expand() error = %v, want *diag.Error", err)
			}
			if !de.Has(tt.wantCode) {
				t.Errorf("error codes = %v, want %s", de.Diagnostics, tt.wantCode)
			}
			if tt.wantMsg != "" && !strings.Contains(de.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want it to contain %q", de.Error(), tt.wantMsg)
			}
			if ce := de.CompileError(); !strings.HasPrefix(ce, "compile_error!(") {
				t.Errorf("CompileError() = %q", ce)
			}
		})
	}
}

func TestExpandRegistersTrait(t *testing.T) {
	x := newExpander()
	src := "trait Named { fn name(&self) -> String; }"
	out, err := x.Expand("", src)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if out.Code != src {
		t.Errorf("Code = %q, want the input unchanged", out.Code)
	}
	if len(out.Traits) != 1 || out.Traits[0] != "Named" {
		t.Errorf("Traits = %v, want [Named]", out.Traits)
	}
	if _, ok := x.Registry().Lookup("Named"); !ok {
		t.Fatal("Named not registered")
	}

	out, err = x.Expand("(T) where T: ^Named", "enum E { A(Dog), B(Cat) }")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if !strings.Contains(out.Code, "impl Named for E {") || !strings.Contains(out.Code, "E::B(val) => val.name(),") {
		t.Errorf("Code =\n%s", out.Code)
	}
}

func TestRegisterTrait(t *testing.T) {
	x := newExpander()
	name, err := x.RegisterTrait("pub trait Area { fn area(&self) -> f64; }")
	if err != nil {
		t.Fatalf("RegisterTrait() error = %v", err)
	}
	if name != "Area" {
		t.Errorf("name = %q, want Area", name)
	}
	if _, err := x.RegisterTrait("struct S;"); err == nil {
		t.Error("RegisterTrait(struct) succeeded")
	}
}

func TestExpandAux(t *testing.T) {
	out, err := newExpander().ExpandAux(expand.KindInto, "u8", "enum Code { Ok = 0, Err = 1 }")
	if err != nil {
		t.Fatalf("ExpandAux() error = %v", err)
	}
	if out.Impls != 1 || !strings.Contains(out.Code, "impl Into<u8> for Code {") {
		t.Errorf("Code =\n%s", out.Code)
	}
	if strings.Contains(out.Code, "= 0") {
		t.Errorf("discriminants kept:\n%s", out.Code)
	}

	if _, err := newExpander().ExpandAux(expand.KindInto, "", "enum Code { Ok = 0 }"); err == nil {
		t.Error("ExpandAux(into) without a type succeeded")
	}
}

func TestExpandSource(t *testing.T) {
	src := `use std::fmt;

/// Shapes.
#[penum]
trait Area {
    fn area(&self) -> f64;
}

#[penum((T) where T: ^Area)]
#[to_string]
pub enum Shape {
    Circle(Circle) = "circle",
    Square(Square) = "square",
}

fn main() {}
`
	got, err := newExpander().ExpandSource("lib.rs", src)
	if err != nil {
		t.Fatalf("ExpandSource() error = %v", err)
	}
	for _, want := range []string{
		"use std::fmt;",
		"trait Area {",
		"    Circle: Area,",
		"impl Area for Shape {",
		"Shape::Square(val) => val.area(),",
		"impl std::string::ToString for Shape {",
		`Shape::Circle(f0) => format!("circle"),`,
		"fn main() {}",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	for _, gone := range []string{"#[penum", "#[to_string]", `= "circle"`} {
		if strings.Contains(got, gone) {
			t.Errorf("output still contains %q:\n%s", gone, got)
		}
	}
}

func TestExpandSourceWithoutDirectives(t *testing.T) {
	src := "#[derive(Debug)]\nenum E { A }\n"
	got, err := newExpander().ExpandSource("lib.rs", src)
	if err != nil {
		t.Fatalf("ExpandSource() error = %v", err)
	}
	if got != src {
		t.Errorf("ExpandSource() = %q, want input unchanged", got)
	}
}

func TestExpandSourceCollectsErrors(t *testing.T) {
	src := `#[penum((T, U))]
enum A { V(i32) }

#[penum((u8))]
enum B { V(i32) }

#[penum]
enum C { V }
`
	_, err := newExpander().ExpandSource("lib.rs", src)
	var de *diag.Error
	if !errors.As(err, &de) {
		t.Fatalf("ExpandSource() error = %v, want *diag.Error", err)
	}
	if len(de.Diagnostics) != 3 {
		t.Fatalf("got %d diagnostics, want 3:\n%v", len(de.Diagnostics), de)
	}
	if !de.Has(diag.CodeNoMatch) || !de.Has(diag.CodeTypeMismatch) {
		t.Errorf("diagnostics = %v", de.Diagnostics)
	}
	if !strings.Contains(de.Diagnostics[2].Message, "needs a pattern") {
		t.Errorf("third diagnostic = %v", de.Diagnostics[2])
	}
}

func TestExpandSourceWithAssertionStubs(t *testing.T) {
	src := "#[penum((T) where T: Copy)]\nenum E { A(i32) }\n"
	got, err := newExpander().WithAssertionStubs().ExpandSource("lib.rs", src)
	if err != nil {
		t.Fatalf("ExpandSource() error = %v", err)
	}
	if !strings.Contains(got, "struct _Assert_E_0 where i32: Copy;") {
		t.Errorf("output:\n%s", got)
	}
	if strings.Contains(got, "where\n") {
		t.Errorf("where clause was extended:\n%s", got)
	}
}
