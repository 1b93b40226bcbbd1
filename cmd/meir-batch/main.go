package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"meirbatch/cmd/meir-batch/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := commands.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}
