package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/iliyamo/munreg/internal/app"
	"github.com/iliyamo/munreg/internal/cli"
	"github.com/iliyamo/munreg/internal/config"
	"github.com/iliyamo/munreg/internal/logger"
)

func main() {
	opts := cli.Options{
		Open: func(ctx context.Context) (*app.App, error) {
			config.LoadDotEnv()
			cfg := config.Load()
			logger.Setup(logger.Config{Level: "warn", Format: "text", Output: os.Stderr})
			return app.New(ctx, cfg)
		},
		Out:          os.Stdout,
		In:           os.Stdin,
		ReadPassword: func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) },
	}
	if err := cli.NewRootCmd(opts).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
