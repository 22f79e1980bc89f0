package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/duckchat/duckchat/internal/cli/duckchatctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := duckchatctl.Run(ctx, os.Args[1:], duckchatctl.Options{
		BaseURL: os.Getenv("DUCKCHAT_BASE_URL"),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
	stop()
	os.Exit(code)
}
