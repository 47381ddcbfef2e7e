package serve

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/viktorlott/enum-shape/cmd/penum/internal/cli"
	"github.com/viktorlott/enum-shape/internal/penumtest"
)

func TestServer(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"penum.yaml": "traits: [area.rs]\nassertions: stubs\nserver: {addr: \"127.0.0.1:9999\"}\n",
		"area.rs":    "trait Area { fn area(&self) -> f64; }\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	g := &cli.Globals{Config: filepath.Join(dir, "penum.yaml"), Stderr: &bytes.Buffer{}}
	env, err := g.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c := &Cmd{MaxBodySize: 1 << 20}
	if got := c.addr(env); got != "127.0.0.1:9999" {
		t.Errorf("addr() = %q", got)
	}
	c.Addr = ":0"
	if got := c.addr(env); got != ":0" {
		t.Errorf("addr() with flag = %q", got)
	}

	srv, err := c.server(env)
	if err != nil {
		t.Fatalf("server() error = %v", err)
	}
	w := penumtest.NewRequest().GET("/traits").WithQuery("prefix", "Ar").Do(srv.Handler())
	penumtest.AssertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"Area"`) {
		t.Errorf("configured trait missing: %s", w.Body.String())
	}

	w = penumtest.NewRequest().POST("/expand").WithJSON(map[string]string{
		"attr":  "(T) where T: Copy",
		"input": "enum E { A(i32) }",
	}).Do(srv.Handler())
	if !strings.Contains(w.Body.String(), "_Assert_E_0") {
		t.Errorf("stubs from penum.yaml not applied: %s", w.Body.String())
	}
}
