// Package main starts the marketplace HTTP API process lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	marketplacecmd "github.com/Kingl1tz/shoppal/internal/cmd/marketplace"
	"github.com/Kingl1tz/shoppal/internal/platform/config"
)

func main() {
	cfg, err := marketplacecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := marketplacecmd.Run(ctx, cfg); err != nil {
		config.Exitf("failed to serve: %v", err)
	}
}
