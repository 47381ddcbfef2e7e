package check

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/viktorlott/enum-shape/cmd/penum/internal/cli"
	"github.com/viktorlott/enum-shape/diag"
)

// ErrFailed is returned when at least one file has diagnostics.
var ErrFailed = errors.New("check failed")

type Cmd struct {
	Files []string `arg:"" help:"Rust source files to check." type:"existingfile"`
}

func (c *Cmd) Run(g *cli.Globals) error {
	env, err := g.Load()
	if err != nil {
		return err
	}
	defer env.Close()

	x, err := env.Expander(false)
	if err != nil {
		return err
	}

	failed := 0
	for _, file := range c.Files {
		src, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if _, err := x.ExpandSource(file, string(src)); err != nil {
			failed++
			report(env.Stderr, diag.FromError(err), env.Color)
			continue
		}
		fmt.Fprintf(env.Stdout, "✓ %s\n", file)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrFailed, failed, len(c.Files))
	}
	return nil
}

const (
	red   = "\x1b[31;1m"
	dim   = "\x1b[2m"
	reset = "\x1b[0m"
)

// report prints one line per diagnostic: `pos: error[code]: message`.
func report(w io.Writer, err *diag.Error, color bool) {
	for _, d := range err.Diagnostics {
		label, code := "error", "["+string(d.Code)+"]"
		if color {
			label, code = red+label+reset, dim+code+reset
		}
		if d.Pos.IsValid() {
			fmt.Fprintf(w, "%s: %s%s: %s\n", d.Pos, label, code, d.Message)
			continue
		}
		fmt.Fprintf(w, "%s%s: %s\n", label, code, d.Message)
	}
}
