// Package penumtest provides helpers shared by the package tests: golden
// expansion cases stored as txtar archives, token-level source comparison and
// HTTP request builders for the server.
package penumtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/viktorlott/enum-shape/syntax"
)

// Case is one golden expansion. Archive sections map to fields by name:
//
//	-- attr --      the attribute arguments
//	-- input.rs --  the annotated enum
//	-- traits.rs -- optional trait declarations to register first
//	-- want.rs --   the expected expansion
//	-- err --       expected diagnostic substrings, one per line
//
// A case has either want.rs or err.
type Case struct {
	Name   string
	Attr   string
	Input  string
	Traits string
	Want   string
	Err    []string
}

// LoadCases reads every *.txtar file under dir, sorted by name.
func LoadCases(t testing.TB, dir string) []Case {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, "*.txtar"))
	if err != nil {
		t.Fatalf("glob %s: %v", dir, err)
	}
	if len(paths) == 0 {
		t.Fatalf("no cases in %s", dir)
	}
	cases := make([]Case, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		cases = append(cases, ParseCase(strings.TrimSuffix(filepath.Base(path), ".txtar"), data))
	}
	return cases
}

// ParseCase decodes one txtar archive.
func ParseCase(name string, data []byte) Case {
	c := Case{Name: name}
	for _, f := range txtar.Parse(data).Files {
		body := strings.TrimSpace(string(f.Data))
		switch f.Name {
		case "attr":
			c.Attr = body
		case "input.rs":
			c.Input = body
		case "traits.rs":
			c.Traits = body
		case "want.rs":
			c.Want = body
		case "err":
			for _, line := range strings.Split(body, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					c.Err = append(c.Err, line)
				}
			}
		}
	}
	return c
}

// Tokens lexes src and returns its token texts, ignoring layout.
func Tokens(t testing.TB, src string) []string {
	t.Helper()
	toks, err := syntax.Lex("src.rs", src)
	if err != nil {
		t.Fatalf("lex: %v\n%s", err, src)
	}
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[i] = tok.Text
	}
	return out
}

// SameTokens reports whether got and want lex to the same token sequence.
func SameTokens(t testing.TB, got, want string) bool {
	t.Helper()
	g, w := Tokens(t, got), Tokens(t, want)
	if len(g) != len(w) {
		return false
	}
	for i := range g {
		if g[i] != w[i] {
			return false
		}
	}
	return true
}

// AssertSameTokens fails the test when got and want differ in more than
// whitespace.
func AssertSameTokens(t testing.TB, got, want string) {
	t.Helper()
	if !SameTokens(t, got, want) {
		t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

// AssertErrors checks that err is non-nil and its message contains every
// substring in want.
func AssertErrors(t testing.TB, err error, want []string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}
	for _, w := range want {
		if !strings.Contains(err.Error(), w) {
			t.Errorf("error %q does not contain %q", err, w)
		}
	}
}
