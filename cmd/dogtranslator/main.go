package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dogtranslator/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, bootstrap.Options{}, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "dogtranslator: %v\n", err)
		os.Exit(1)
	}
}
