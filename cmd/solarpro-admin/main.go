package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/solarpro/erp/pkg/cli"
	"github.com/solarpro/erp/pkg/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand(cli.DefaultEnv()).Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
