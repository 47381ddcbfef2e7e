package traits

import (
	"fmt"
	"strings"

	"github.com/viktorlott/enum-shape/cmd/penum/internal/cli"
)

type Cmd struct {
	Prefix string `arg:"" optional:"" help:"Only list traits whose name starts with this prefix."`
	Source bool   `help:"Print each trait declaration instead of its name."`
}

func (c *Cmd) Run(g *cli.Globals) error {
	env, err := g.Load()
	if err != nil {
		return err
	}
	defer env.Close()

	reg, err := env.Config.Registry()
	if err != nil {
		return err
	}
	for _, name := range reg.Names() {
		if !strings.HasPrefix(name, c.Prefix) {
			continue
		}
		if !c.Source {
			fmt.Fprintln(env.Stdout, name)
			continue
		}
		trait, _ := reg.Lookup(name)
		fmt.Fprintf(env.Stdout, "%s\n\n", trait)
	}
	return nil
}
