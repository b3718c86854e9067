package cli

import (
	"context"
	"fmt"
	"io"
)

// Server is the blocking entry point started by the run subcommand.
type Server interface {
	Serve(ctx context.Context) error
}

// Dispatch routes a parsed subcommand. Values outside the grammar panic.
func Dispatch(ctx context.Context, sub Subcommand, srv Server, out io.Writer) error {
	switch sub {
	case SubcommandRun:
		return srv.Serve(ctx)
	case SubcommandNone:
		_, err := fmt.Fprintln(out, "none")
		return err
	default:
		panic(fmt.Sprintf("unreachable: subcommand %d", int(sub)))
	}
}

// Execute parses args, builds the server only when it is needed and
// dispatches. It returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, newServer func() (Server, error)) int {
	sub, ok, err := Parse(args, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	if !ok {
		return 0
	}

	var srv Server
	if sub == SubcommandRun {
		if srv, err = newServer(); err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return 1
		}
	}

	if err := Dispatch(ctx, sub, srv, stdout); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
