// Package cli holds the flags and environment shared by the penum commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	penum "github.com/viktorlott/enum-shape"
	"github.com/viktorlott/enum-shape/internal/logger"
)

// Globals are the flags accepted by every command.
type Globals struct {
	Config    string `help:"Path to penum.yaml (default: search upward from the working directory)." short:"c" type:"existingfile"`
	NoConfig  bool   `help:"Ignore penum.yaml."`
	LogLevel  string `help:"Log level: debug, info, warn or error (overrides penum.yaml)."`
	LogFormat string `help:"Log format: text or json (overrides penum.yaml)."`
	NoColor   bool   `help:"Disable coloured diagnostics."`

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer `kong:"-"`
	Stderr io.Writer `kong:"-"`
}

// Env is what a command runs with.
type Env struct {
	Config *penum.Config
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer

	// Color is set when diagnostics may use ANSI colours.
	Color bool

	closer io.Closer
}

// Load resolves the configuration and builds the logger.
func (g *Globals) Load() (*Env, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	env := &Env{Config: cfg, Stdout: g.Stdout, Stderr: g.Stderr}
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}

	lc := logger.DefaultConfig()
	lc.Level, lc.Format, lc.Output = cfg.Log.Level, cfg.Log.Format, env.Stderr
	if g.LogLevel != "" {
		lc.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		lc.Format = g.LogFormat
	}
	env.Logger, env.closer, err = logger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}

	env.Color = !g.NoColor && os.Getenv("NO_COLOR") == "" && isTerminal(env.Stderr)
	return env, nil
}

func (g *Globals) loadConfig() (*penum.Config, error) {
	if g.NoConfig {
		return penum.DefaultConfig(), nil
	}
	path := g.Config
	if path == "" {
		found, err := penum.FindConfig(".")
		if err != nil {
			return nil, err
		}
		if found == "" {
			return penum.DefaultConfig(), nil
		}
		path = found
	}
	return penum.LoadConfig(path)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Close releases the log file, if any.
func (e *Env) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// Expander returns an expander whose registry holds the std traits and the
// traits listed in penum.yaml.
func (e *Env) Expander(stubs bool) (*penum.Expander, error) {
	reg, err := e.Config.Registry()
	if err != nil {
		return nil, err
	}
	x := penum.New().WithRegistry(reg.WithLogger(e.Logger)).WithLogger(e.Logger)
	if stubs || e.Config.Stubs() {
		x = x.WithAssertionStubs()
	}
	return x, nil
}
