package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/viktorlott/enum-shape/cmd/penum/internal/check"
	"github.com/viktorlott/enum-shape/cmd/penum/internal/cli"
	"github.com/viktorlott/enum-shape/cmd/penum/internal/expand"
	"github.com/viktorlott/enum-shape/cmd/penum/internal/serve"
	"github.com/viktorlott/enum-shape/cmd/penum/internal/traits"
)

type CLI struct {
	cli.Globals

	Version VersionCmd `cmd:"" help:"Print version information."`
	Expand  expand.Cmd `cmd:"" help:"Expand penum attributes in Rust source files."`
	Check   check.Cmd  `cmd:"" help:"Report pattern and bound errors without writing output."`
	Traits  traits.Cmd `cmd:"" help:"List the traits available for dispatch."`
	Serve   serve.Cmd  `cmd:"" help:"Serve expansions over HTTP."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	c := &CLI{}
	ctx := kong.Parse(c,
		kong.Name("penum"),
		kong.Description("Shape patterns, bound propagation and dispatch for Rust enums."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&c.Globals)
	ctx.FatalIfErrorf(err)
}
