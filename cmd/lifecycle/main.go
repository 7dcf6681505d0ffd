package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"agency_lifecycle/internal/infra/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Get().WithError(err).Error("Command failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
