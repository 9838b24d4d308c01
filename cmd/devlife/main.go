package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"

	"github.com/ErlanBelekov/devlife/internal/cli"
	"github.com/ErlanBelekov/devlife/internal/runner"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	level := slog.LevelWarn
	if os.Getenv("DEVLIFE_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))

	root := cli.NewRootCommand(cli.Options{
		Runner: runner.New(logger),
		Logger: logger,
	})
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
