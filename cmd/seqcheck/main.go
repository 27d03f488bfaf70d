package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dwhelan/sequences/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		// Commands print their own results; stderr only carries the reason for the exit code.
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		for _, tip := range cli.Advice(err) {
			fmt.Fprintf(os.Stderr, "  • %s\n", tip)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
