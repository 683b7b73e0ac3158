package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/pflag"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Usage       string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *pflag.FlagSet

	out io.Writer
}

// Env carries the process environment the commands read
type Env struct {
	Out    io.Writer
	Getenv func(string) string
}

// DefaultEnv writes to stdout and reads the real environment
func DefaultEnv() Env {
	return Env{Out: os.Stdout, Getenv: os.Getenv}
}

// NewRootCommand creates the root command
func NewRootCommand(env Env) *Command {
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.Getenv == nil {
		env.Getenv = os.Getenv
	}

	root := &Command{
		Name:        "solarpro-admin",
		Description: "SolarPro ERP settings administration",
		Subcommands: make(map[string]*Command),
		Flags:       pflag.NewFlagSet("solarpro-admin", pflag.ContinueOnError),
		out:         env.Out,
	}

	root.Subcommands["signin"] = newSignInCommand(env)
	root.Subcommands["nav"] = newNavCommand(env)
	root.Subcommands["list"] = newListCommand(env)
	root.Subcommands["create"] = newCreateCommand(env)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		c.usage()
		return nil
	}

	subcmd, ok := c.Subcommands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", args[0])
	}
	if err := subcmd.Flags.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	return subcmd.Run(ctx, subcmd.Flags.Args())
}

// usage prints the command usage
func (c *Command) usage() {
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-10s %s\n", name, c.Subcommands[name].Description)
	}
}
