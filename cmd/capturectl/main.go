package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/johnquangdev/meetscribe/internal/capture/control"
	"github.com/johnquangdev/meetscribe/internal/cli"
	"github.com/johnquangdev/meetscribe/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := os.Getenv("CAPTURECTL_CONFIG")

	cfg, err := config.LoadCtl(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deps := &cli.Dependencies{
		Client:     control.NewClient(cfg.AgentURL),
		Config:     cfg,
		ConfigPath: cfgPath,
		Out:        os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return cli.NewRootCmd(deps).ExecuteContext(ctx)
}
