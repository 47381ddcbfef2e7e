package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"simple", "src/lib.expanded.rs", ""},
		{"single file", "lib.rs", ""},
		{"empty", "", "empty"},
		{"absolute", "/src/lib.rs", "absolute paths not allowed"},
		{"windows drive", "C:/lib.rs", "absolute paths not allowed"},
		{"traversal", "src/../lib.rs", "path traversal not allowed"},
		{"leading traversal", "../lib.rs", "path traversal not allowed"},
		{"dots in name", "lib..rs", ""},
		{"current dir prefix", "./lib.rs", "not clean"},
		{"double slash", "src//lib.rs", "not clean"},
		{"trailing slash", "src/", "not clean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("ValidatePath(%q) error = %v", tt.path, err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Errorf("ValidatePath(%q) error = %v, want %q", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()
	content := []byte("enum E {}")
	if err := s.WriteFile(ctx, "b.rs", content); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := s.WriteFile(ctx, "a.rs", nil); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	content[0] = 'X'
	if got := s.Get("b.rs"); string(got) != "enum E {}" {
		t.Errorf("Get() = %q, stored content must be a copy", got)
	}
	if got := s.Paths(); len(got) != 2 || got[0] != "a.rs" {
		t.Errorf("Paths() = %v", got)
	}
	if s.Get("missing.rs") != nil {
		t.Error("Get(missing) should be nil")
	}
	s.Reset()
	if len(s.Paths()) != 0 {
		t.Error("Reset() left files behind")
	}
	if err := s.WriteFile(ctx, "../x.rs", nil); err == nil {
		t.Error("expected error for traversal")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.WriteFile(cancelled, "a.rs", nil); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestMemorySinkConcurrent(t *testing.T) {
	s := NewMemorySink()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.WriteFile(context.Background(), fmt.Sprintf("f%d.rs", i), []byte("x")); err != nil {
				t.Error(err)
			}
			s.Paths()
		}(i)
	}
	wg.Wait()
	if n := len(s.Paths()); n != 50 {
		t.Errorf("got %d files, want 50", n)
	}
}

func TestFilesystemSink(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFilesystemSink(root)

	if err := s.WriteFile(ctx, "src/lib.expanded.rs", []byte("one")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := s.WriteFile(ctx, "src/lib.expanded.rs", []byte("two")); err != nil {
		t.Fatalf("overwrite error = %v", err)
	}
	path := filepath.Join(root, "src", "lib.expanded.rs")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q, want two", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Join(root, "src"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".penum-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFilesystemSinkNoOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewFilesystemSink(t.TempDir())
	s.Overwrite = false
	if err := s.WriteFile(ctx, "lib.rs", []byte("a")); err != nil {
		t.Fatal(err)
	}
	err := s.WriteFile(ctx, "lib.rs", []byte("b"))
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("WriteFile() error = %v, want already exists", err)
	}
}

func TestFilesystemSinkRejectsEscapes(t *testing.T) {
	s := NewFilesystemSink(t.TempDir())
	for _, p := range []string{"../out.rs", "/etc/out.rs", "a/../../out.rs"} {
		if err := s.WriteFile(context.Background(), p, nil); err == nil {
			t.Errorf("WriteFile(%q) should fail", p)
		}
	}
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	if err := s.WriteFile(context.Background(), "a.rs", []byte("enum A {}")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFile(context.Background(), "b.rs", []byte("enum B {}\n")); err != nil {
		t.Fatal(err)
	}
	want := "// a.rs\nenum A {}\n// b.rs\nenum B {}\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
