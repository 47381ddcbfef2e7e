package dispatch

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/viktorlott/enum-shape/syntax"
)

var discard = slog.New(slog.DiscardHandler)

const abcTrait = `trait Abc {
    type Input;
    fn get(&self) -> &Self::Input;
}`

func mustSubject(t *testing.T, src string) *syntax.Subject {
	t.Helper()
	s, err := syntax.ParseSubject("subject.rs", src)
	if err != nil {
		t.Fatalf("ParseSubject() error = %v", err)
	}
	return s
}

func mustClause(t *testing.T, attr string) *syntax.Clause {
	t.Helper()
	expr, err := syntax.ParsePatternExpr("attr", attr)
	if err != nil {
		t.Fatalf("ParsePatternExpr() error = %v", err)
	}
	return expr.Clause
}

func testRegistry(t *testing.T, extra ...string) *Registry {
	t.Helper()
	reg := NewStdRegistry().WithLogger(discard)
	for _, src := range extra {
		if _, err := reg.RegisterSource("extra.rs", src); err != nil {
			t.Fatalf("RegisterSource() error = %v", err)
		}
	}
	return reg
}

func TestStdRegistry(t *testing.T) {
	reg := NewStdRegistry()
	for _, name := range []string{"AsRef", "AsMut", "Deref", "Display", "Into", "Iterator", "Add", "ShrAssign", "Neg"} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("Lookup(%q) not found", name)
		}
	}
	tr, ok := reg.Lookup("std::convert::AsRef")
	if !ok {
		t.Fatal("qualified lookup failed")
	}
	if tr.Name() != "AsRef" || len(tr.Methods) != 1 {
		t.Errorf("AsRef = %s with %d methods", tr.Name(), len(tr.Methods))
	}
	if Default() != Default() {
		t.Error("Default() should return the same registry")
	}
}

func TestRegistryFirstWriteWins(t *testing.T) {
	reg := NewRegistry().WithLogger(discard)
	first, err := syntax.ParseTrait("a.rs", abcTrait)
	if err != nil {
		t.Fatal(err)
	}
	second, err := syntax.ParseTrait("b.rs", "trait Abc { fn other(&self); }")
	if err != nil {
		t.Fatal(err)
	}
	if !reg.Register(first) {
		t.Fatal("first Register() = false")
	}
	if reg.Register(second) {
		t.Error("second Register() = true, want false")
	}
	got, _ := reg.Lookup("Abc")
	if got != first {
		t.Error("registry replaced the first declaration")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "Abc" {
		t.Errorf("Names() = %v", names)
	}
}

func TestRegistryConcurrent(t *testing.T) {
	reg := NewRegistry().WithLogger(discard)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := fmt.Sprintf("trait T%d { fn f(&self); }", i%5)
			if _, err := reg.RegisterSource("c.rs", src); err != nil {
				t.Error(err)
			}
			reg.Lookup("T0")
			reg.Names()
		}(i)
	}
	wg.Wait()
	if reg.Len() != 5 {
		t.Errorf("Len() = %d, want 5", reg.Len())
	}
}

func TestRegisterSourceError(t *testing.T) {
	reg := NewRegistry().WithLogger(discard)
	if _, err := reg.RegisterSource("bad.rs", "struct S;"); err == nil {
		t.Error("expected error for non-trait item")
	}
}

func TestVariantSigPattern(t *testing.T) {
	s := mustSubject(t, "enum E { V1(String, i32), V2(i32, String), N { x: u8, y: u8 }, M { x: u8 } }")
	tests := []struct {
		variant int
		index   int
		want    string
	}{
		{0, 0, "E::V1(val, ..)"},
		{1, 1, "E::V2(_, val)"},
		{2, 0, "E::N { x: val, .. }"},
		{3, 0, "E::M { x: val }"},
	}
	for _, tt := range tests {
		sig := NewVariantSig("E", s.Variants[tt.variant], tt.index)
		if got := sig.Pattern("val"); got != tt.want {
			t.Errorf("Pattern() = %q, want %q", got, tt.want)
		}
	}
}

func TestPlan(t *testing.T) {
	reg := testRegistry(t, abcTrait)
	clause := mustClause(t, "(T) where T: ^AsRef<str> + Clone, U: ^Missing, impl Abc for String")

	bps := Plan(reg, clause, discard)
	if bps.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", bps.Len())
	}
	all := bps.All()
	if all[0].Trait.Name() != "AsRef" || all[0].Key.Text != "T" {
		t.Errorf("blueprint 0 = %s keyed %s", all[0].Trait.Name(), all[0].Key)
	}
	if all[1].Trait.Name() != "Abc" || all[1].Key.Text != "String" {
		t.Errorf("blueprint 1 = %s keyed %s", all[1].Trait.Name(), all[1].Key)
	}

	s := mustSubject(t, "enum E { V(String) }")
	sig := NewVariantSig("E", s.Variants[0], 0)
	if n := bps.Attach(syntax.NewUniqueID("T"), sig); n != 1 {
		t.Errorf("Attach(T) = %d, want 1", n)
	}
	if n := bps.Attach(syntax.NewUniqueID("U"), sig); n != 0 {
		t.Errorf("Attach(U) = %d, want 0", n)
	}
	if !bps.Has(syntax.NewUniqueID("String")) || bps.Has(syntax.NewUniqueID("U")) {
		t.Error("Has() mismatch")
	}

	var nilPlan *Blueprints
	if nilPlan.Len() != 0 || nilPlan.Attach(syntax.NewUniqueID("T"), sig) != 0 {
		t.Error("nil Blueprints should be empty")
	}
	if Plan(reg, nil, nil).Len() != 0 {
		t.Error("Plan(nil clause) should be empty")
	}
}

func TestPlanSkipsDuplicateBounds(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		name string
		attr string
		want int
	}{
		{name: "same bound twice", attr: "(T) where T: ^AsRef<str>, T: ^AsRef<str>", want: 1},
		{name: "same bound in one predicate", attr: "(T) where T: ^AsRef<str> + ^AsRef<str>", want: 1},
		{name: "different arguments", attr: "(T) where T: ^AsRef<str>, T: ^AsRef<[u8]>", want: 2},
		{name: "different keys", attr: "(T, U) where T: ^AsRef<str>, U: ^AsRef<str>", want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Plan(reg, mustClause(t, tt.attr), discard).Len(); got != tt.want {
				t.Errorf("Len() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPlanWarnsOnUnboundAssocType(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		name     string
		attr     string
		wantWarn bool
	}{
		{name: "no binding", attr: "(T) where T: ^Add<u8>", wantWarn: true},
		{name: "bound in clause", attr: "(T) where T: ^Add<u8, Output = u8>", wantWarn: false},
		{name: "no associated types", attr: "(T) where T: ^AsRef<str>", wantWarn: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			if Plan(reg, mustClause(t, tt.attr), logger).Len() != 1 {
				t.Fatal("want one blueprint")
			}
			got := strings.Contains(buf.String(), "assoc=Output")
			if got != tt.wantWarn {
				t.Errorf("warned = %v, want %v; log:\n%s", got, tt.wantWarn, buf.String())
			}
		})
	}
}

func render(t *testing.T, reg *Registry, attr, subject string, sigs ...[2]int) string {
	t.Helper()
	s := mustSubject(t, subject)
	bps := Plan(reg, mustClause(t, attr), discard)
	if bps.Len() != 1 {
		t.Fatalf("Plan() produced %d blueprints, want 1", bps.Len())
	}
	bp := bps.All()[0]
	for _, vi := range sigs {
		bp.Sigs = append(bp.Sigs, NewVariantSig(s.Ident.Text, s.Variants[vi[0]], vi[1]))
	}
	return bp.Render(s)
}

func TestRenderStdTrait(t *testing.T) {
	got := render(t, testRegistry(t), "(T) where T: ^AsRef<str>", "enum Enum { V1(String) }", [2]int{0, 0})
	want := `impl AsRef<str> for Enum {
    fn as_ref(&self) -> &str {
        match self {
            Enum::V1(val) => val.as_ref(),
            _ => "",
        }
    }
}
`
	if got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderAssociatedTypes(t *testing.T) {
	got := render(t, testRegistry(t, abcTrait), "(T) where T: ^Abc<Input = str>",
		"enum Enum { V1(String), V2(String) }", [2]int{0, 0}, [2]int{1, 0})
	want := `impl Abc for Enum {
    type Input = str;

    fn get(&self) -> &Self::Input {
        match self {
            Enum::V1(val) => val.get(),
            Enum::V2(val) => val.get(),
            _ => panic!("Missing arm"),
        }
    }
}
`
	if got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderGenericsAndParams(t *testing.T) {
	const put = `trait Put<R = u8> {
    fn put(&mut self, (a, b): (i32, i32), mut n: R, _: bool);
    fn make() -> Self;
}`
	got := render(t, testRegistry(t, put), "(T) where T: ^Put",
		"enum E<T: Clone> where T: Copy { A(T, u8) }", [2]int{0, 0})
	want := `impl<T: Clone> Put for E<T> where T: Copy {
    fn put(&mut self, arg0: (i32, i32), mut n: u8, arg2: bool) {
        match self {
            E::A(val, ..) => val.put(arg0, n, arg2),
            _ => {},
        }
    }

    fn make() -> Self {
        unimplemented!()
    }
}
`
	if got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderWithoutSigs(t *testing.T) {
	got := render(t, testRegistry(t), "(T) where T: ^Into<i64>", "enum E { A(i32) }")
	want := `impl Into<i64> for E {
    fn into(self) -> i64 {
        match self {
            _ => panic!("Missing arm"),
        }
    }
}
`
	if got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}
