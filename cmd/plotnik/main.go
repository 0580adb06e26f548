// Command plotnik compiles and runs Plotnik queries against tree-sitter
// grammars: check a query for errors, compile it to bytecode, link a
// previously compiled module against a grammar, or run it end to end
// against source files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/termfx/plotnik/internal/cli"
	"github.com/termfx/plotnik/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading .env: %v\n", err)
		os.Exit(1)
	}

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "plotnik",
		Short:         "Compile and run Plotnik queries against tree-sitter grammars.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fs := root.PersistentFlags()
	config.Flags(fs)

	root.AddCommand(
		newSubcommand("check", "Parse, resolve, and type-check a query without executing it.",
			func(r *cli.Runner, _ []string) int { return r.Check() }),
		newSubcommand("compile", "Compile a query to a linked bytecode module, printed to stdout.",
			func(r *cli.Runner, _ []string) int { return r.Compile() }),
		newSubcommand("run", "Compile (with caching) and execute a query against source files.",
			func(r *cli.Runner, _ []string) int { return r.Run() }),
		newLinkCmd(),
	)
	return root
}

func newSubcommand(use, short string, body func(*cli.Runner, []string) int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if code := body(&cli.Runner{Cfg: cfg}, args); code != 0 {
				return fmt.Errorf("%s failed", use)
			}
			return nil
		},
	}
}

// newLinkCmd is separate because it needs one positional argument (the
// unlinked bytecode module's path) that the other subcommands don't take.
func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <module-file>",
		Short: "Relink a previously compiled unlinked bytecode module against --grammar.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if code := (&cli.Runner{Cfg: cfg}).Link(args[0]); code != 0 {
				return fmt.Errorf("link failed")
			}
			return nil
		},
	}
}
