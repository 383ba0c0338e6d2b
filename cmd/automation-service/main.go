package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/lnkday/automation-service/internal/app"
)

func main() {
	app.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx, nil); err != nil {
		slog.Error("Service exited with error", "error", err)
	}
}
