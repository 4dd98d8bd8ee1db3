// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/actstream/actstream/cmd/ingester/app"
	"github.com/actstream/actstream/cmd/internal/builder"
	"github.com/actstream/actstream/cmd/internal/docs"
	"github.com/actstream/actstream/cmd/internal/env"
	"github.com/actstream/actstream/internal/version"
)

func main() {
	v := viper.New()
	command := &cobra.Command{
		Use:   "activity-stream-ingester",
		Short: "Pulls activity feeds into the search backend",
		Long: `The ingester acquires the distributed ingest lock, continually rebuilds
one index per configured feed behind the shared alias, and caches the
rendered metrics for the gateway to serve.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			rt, err := builder.New(os.Environ())
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.Logger.Info("Starting ingester", zap.Stringer("version", version.Get()))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.Run(ctx, rt); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			rt.Logger.Info("Ingester finishing")
			return nil
		},
	}

	command.AddCommand(version.Command())
	command.AddCommand(env.Command())
	command.AddCommand(docs.Command(v))

	if err := command.Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
