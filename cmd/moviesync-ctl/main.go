// Command moviesync-ctl inspects and repairs the checkpoint, the dead-letter
// queue and the destination indices
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"moviesync/internal/cli"
	"moviesync/internal/platform/logger"
)

func main() {
	logger.Init(logger.Options{Service: "moviesync-ctl", Level: "warn", Writer: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
