package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"roomdesk/internal/deskctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := deskctl.NewApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "deskctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
