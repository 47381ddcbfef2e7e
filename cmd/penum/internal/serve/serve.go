package serve

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/viktorlott/enum-shape/cmd/penum/internal/cli"
	"github.com/viktorlott/enum-shape/server"
)

type Cmd struct {
	Addr        string `help:"Address to listen on (default: penum.yaml server.addr)." short:"a"`
	Stubs       bool   `help:"Default to assertion stubs when a request doesn't choose."`
	MaxBodySize int64  `help:"Maximum request body size in bytes." default:"1048576"`
	MaskErrors  bool   `help:"Hide the message of internal errors from clients."`
}

func (c *Cmd) Run(g *cli.Globals) error {
	env, err := g.Load()
	if err != nil {
		return err
	}
	defer env.Close()
	slog.SetDefault(env.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	srv, err := c.server(env)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, c.addr(env))
}

func (c *Cmd) addr(env *cli.Env) string {
	if c.Addr != "" {
		return c.Addr
	}
	return env.Config.Server.Addr
}

func (c *Cmd) server(env *cli.Env) (*server.Server, error) {
	x, err := env.Expander(false)
	if err != nil {
		return nil, err
	}
	s := server.New().
		WithLogger(env.Logger).
		WithRegistry(x.Registry()).
		WithMaxRequestBodySize(c.MaxBodySize)
	if c.Stubs || env.Config.Stubs() {
		s = s.WithAssertionStubs()
	}
	if c.MaskErrors {
		s = s.WithMaskInternalErrors()
	}
	return s, nil
}
