package expand

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/viktorlott/enum-shape/cmd/penum/internal/cli"
)

const lib = `#[penum((T) where T: ^AsRef<str>)]
enum Name {
    Owned(String),
    Borrowed(&'static str),
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunToStdout(t *testing.T) {
	file := writeFile(t, t.TempDir(), "lib.rs", lib)
	var stdout bytes.Buffer
	g := &cli.Globals{NoConfig: true, Stdout: &stdout, Stderr: &bytes.Buffer{}}

	if err := (&Cmd{Files: []string{file}, Force: true}).Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"// lib.expanded.rs\n", "impl AsRef<str> for Name {", "Name::Borrowed(val) => val.as_ref(),"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunToDirectory(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "lib.rs", lib)
	writeFile(t, dir, "penum.yaml", "out: gen\nsuffix: .out.rs\n")

	g := &cli.Globals{Config: filepath.Join(dir, "penum.yaml"), Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	if err := (&Cmd{Files: []string{file}, Force: true}).Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "gen", "lib.out.rs"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(got), "String: AsRef<str>,") {
		t.Errorf("output:\n%s", got)
	}

	// A second run without --force refuses to replace the file.
	err = (&Cmd{Files: []string{file}, Force: false}).Run(g)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Run() without force error = %v", err)
	}
}

func TestRunReportsExpansionErrors(t *testing.T) {
	file := writeFile(t, t.TempDir(), "bad.rs", "#[penum((T, U))]\nenum E { A(i32) }\n")
	g := &cli.Globals{NoConfig: true, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	err := (&Cmd{Files: []string{file}}).Run(g)
	if err == nil || !strings.Contains(err.Error(), "doesn't match pattern") {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		base, file, want string
	}{
		{dir, filepath.Join(dir, "src", "lib.rs"), "src/lib.rs"},
		{filepath.Join(dir, "a"), filepath.Join(dir, "b", "lib.rs"), "lib.rs"},
	}
	for _, tt := range tests {
		if got := outputPath(tt.base, tt.file); got != tt.want {
			t.Errorf("outputPath(%q, %q) = %q, want %q", tt.base, tt.file, got, tt.want)
		}
	}
}
