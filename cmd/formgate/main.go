// formgate serves the form submission API and its maintenance commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) == 0 {
		printUsage()
		return errors.New("missing command")
	}
	cmd, ok := commands()[args[0]]
	if !ok {
		if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
			printUsage()
			return nil
		}
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd(ctx, args[1:])
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: formgate <command> [flags]

Commands:
  serve              run the submission server
  migrate            create or update database tables
  api-key create     issue an API key for a form
  api-key revoke     revoke an API key
  form password      set or clear a form's submission password
  user token         issue a submitter token for a user

Run "formgate <command> --help" for command flags.
`)
}
