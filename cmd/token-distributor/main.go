package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/smartcontractkit/chainlink-token-distributor/pkg/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := commands.NewRootCommand(commands.Config{}).ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
