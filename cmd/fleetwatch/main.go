// Command fleetwatch runs the fleet infrastructure monitoring core in
// one of three modes: api, worker, or migrate.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wisbric/fleetwatch/internal/app"
	"github.com/wisbric/fleetwatch/internal/config"
)

func main() {
	mode := flag.String("mode", "", "runtime mode: api, worker, or migrate (overrides FLEETWATCH_MODE)")
	flag.Parse()

	if *mode != "" {
		os.Setenv("FLEETWATCH_MODE", *mode)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fleetwatch: loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "fleetwatch: %v\n", err)
		os.Exit(1)
	}
}
