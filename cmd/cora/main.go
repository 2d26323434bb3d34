// Command cora runs the ritual of verified service from the command line.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/cora/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
