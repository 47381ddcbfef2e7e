package expand

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/viktorlott/enum-shape/cmd/penum/internal/cli"
	"github.com/viktorlott/enum-shape/sink"
)

type Cmd struct {
	Files []string `arg:"" help:"Rust source files to expand." type:"existingfile"`
	Out   string   `help:"Output directory (default: penum.yaml out, else standard output)." short:"o"`
	Stubs bool     `help:"Emit inferred bounds as assertion stubs instead of where predicates."`
	Force bool     `help:"Overwrite existing output files." short:"f" default:"true" negatable:""`
}

func (c *Cmd) Run(g *cli.Globals) error {
	env, err := g.Load()
	if err != nil {
		return err
	}
	defer env.Close()

	x, err := env.Expander(c.Stubs)
	if err != nil {
		return err
	}

	out, base := c.sink(env)
	ctx := context.Background()
	for _, file := range c.Files {
		src, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		code, err := x.ExpandSource(file, string(src))
		if err != nil {
			return fmt.Errorf("expanding %s: %w", file, err)
		}
		name := env.Config.OutputName(outputPath(base, file))
		if err := out.WriteFile(ctx, name, []byte(code)); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		env.Logger.Debug("expanded", slog.String("file", file), slog.String("output", name))
	}
	return nil
}

// sink picks the destination and the directory output paths are made
// relative to.
func (c *Cmd) sink(env *cli.Env) (sink.Sink, string) {
	base := env.Config.Dir
	if base == "" {
		base = "."
	}
	dir := c.Out
	if dir == "" {
		dir = env.Config.OutDir()
	}
	if dir == "" {
		return sink.NewWriterSink(env.Stdout), base
	}
	fs := sink.NewFilesystemSink(dir)
	fs.Overwrite = c.Force
	return fs, base
}

// outputPath returns file relative to base, or its base name when it lies
// outside base.
func outputPath(base, file string) string {
	absBase, err1 := filepath.Abs(base)
	absFile, err2 := filepath.Abs(file)
	if err1 == nil && err2 == nil {
		if rel, err := filepath.Rel(absBase, absFile); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(file)
}
