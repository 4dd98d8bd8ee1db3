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
	"golang.org/x/sync/errgroup"

	gatewayApp "github.com/actstream/actstream/cmd/gateway/app"
	ingesterApp "github.com/actstream/actstream/cmd/ingester/app"
	"github.com/actstream/actstream/cmd/internal/builder"
	"github.com/actstream/actstream/cmd/internal/docs"
	"github.com/actstream/actstream/cmd/internal/env"
	"github.com/actstream/actstream/cmd/internal/status"
	"github.com/actstream/actstream/internal/version"
)

// all-in-one runs the gateway and the ingester in one process, backed by
// the same Redis and Elasticsearch deployments. The gateway serves
// immediately; the ingester first waits its turn for the ingest lock.
func main() {
	v := viper.New()
	command := &cobra.Command{
		Use:   "activity-stream",
		Short: "Activity Stream all-in-one distribution with gateway and ingester in one process",
		Long: `The all-in-one distribution serves the authenticated activity search API
while pulling the configured feeds into the search backend, all from a
single process.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			rt, err := builder.New(os.Environ())
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.Logger.Info("Starting all-in-one", zap.Stringer("version", version.Get()))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return gatewayApp.Run(ctx, rt)
			})
			g.Go(func() error {
				return ingesterApp.Run(ctx, rt)
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			rt.Logger.Info("All-in-one finishing")
			return nil
		},
	}

	command.AddCommand(version.Command())
	command.AddCommand(env.Command())
	command.AddCommand(docs.Command(v))
	command.AddCommand(status.Command(v, os.Getenv("PORT")))

	if err := command.Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
