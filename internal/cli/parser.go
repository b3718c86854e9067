// Package cli parses the PaustDB command line and dispatches to the server.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const (
	programName = "PaustDB"
	version     = "0.0.1"
	about       = "Decentralized TSDB specialized for real-time streaming"
)

// Subcommand is the closed set of modes the grammar accepts.
type Subcommand int

const (
	// SubcommandNone means no subcommand was given.
	SubcommandNone Subcommand = iota
	// SubcommandRun starts the server.
	SubcommandRun
)

func (s Subcommand) String() string {
	switch s {
	case SubcommandNone:
		return "none"
	case SubcommandRun:
		return "run"
	default:
		return "unknown"
	}
}

func newRootCommand(matched func(Subcommand)) *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Long:          about,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			matched(SubcommandNone)
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	// Cobra always installs a help command; this one rejects itself so that
	// run stays the only subcommand. The --help flag still works.
	root.SetHelpCommand(&cobra.Command{
		Use:    "help",
		Hidden: true,
		Args:   cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("unknown command %q for %q", "help", programName)
		},
	})
	root.SetVersionTemplate(programName + " {{.Version}}\n")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run paustdb server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			matched(SubcommandRun)
			return nil
		},
	})

	return root
}

// Parse matches args against the grammar. ok is false when the grammar handled
// the invocation itself (help or version output) and nothing should be dispatched.
func Parse(args []string, stdout, stderr io.Writer) (sub Subcommand, ok bool, err error) {
	root := newRootCommand(func(s Subcommand) {
		sub, ok = s, true
	})
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		return SubcommandNone, false, err
	}
	return sub, ok, nil
}
