package check

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/viktorlott/enum-shape/cmd/penum/internal/cli"
	"github.com/viktorlott/enum-shape/diag"
	"github.com/viktorlott/enum-shape/syntax"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.rs")
	bad := filepath.Join(dir, "bad.rs")
	if err := os.WriteFile(good, []byte("#[penum((T))]\nenum E { A(i32) }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("#[penum((i32))]\nenum E { A(u8) }\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	g := &cli.Globals{NoConfig: true, Stdout: &stdout, Stderr: &stderr}
	err := (&Cmd{Files: []string{good, bad}}).Run(g)
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("Run() error = %v, want ErrFailed", err)
	}
	if !strings.Contains(err.Error(), "1 of 2 files") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(stdout.String(), "✓ "+good) {
		t.Errorf("stdout = %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "error[type_mismatch]: Found `u8` but expected `i32`.") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "\x1b[") {
		t.Error("colour written to a buffer")
	}

	if err := (&Cmd{Files: []string{good}}).Run(g); err != nil {
		t.Errorf("Run(good) error = %v", err)
	}
}

func TestReport(t *testing.T) {
	e := &diag.Error{Diagnostics: []diag.Diagnostic{
		{Code: diag.CodeNoMatch, Pos: syntax.Pos{File: "lib.rs", Line: 2, Column: 10}, Message: "no"},
		{Code: diag.CodeParse, Message: "bad"},
	}}
	tests := []struct {
		color bool
		want  string
	}{
		{false, "lib.rs:2:10: error[no_match]: no\nerror[parse]: bad\n"},
		{true, "lib.rs:2:10: " + red + "error" + reset + dim + "[no_match]" + reset + ": no\n" + red + "error" + reset + dim + "[parse]" + reset + ": bad\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		report(&buf, e, tt.color)
		if buf.String() != tt.want {
			t.Errorf("report(color=%v) = %q, want %q", tt.color, buf.String(), tt.want)
		}
	}
}
