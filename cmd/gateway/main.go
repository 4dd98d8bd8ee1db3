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

	"github.com/actstream/actstream/cmd/gateway/app"
	"github.com/actstream/actstream/cmd/internal/builder"
	"github.com/actstream/actstream/cmd/internal/docs"
	"github.com/actstream/actstream/cmd/internal/env"
	"github.com/actstream/actstream/cmd/internal/status"
	"github.com/actstream/actstream/internal/version"
)

func main() {
	v := viper.New()
	command := &cobra.Command{
		Use:   "activity-stream-gateway",
		Short: "Serves the authenticated activity search API",
		Long: `The gateway authenticates incoming requests, proxies searches to the
search backend with opaque scroll pagination, and serves the health and
metrics endpoints.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			rt, err := builder.New(os.Environ())
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.Logger.Info("Starting gateway", zap.Stringer("version", version.Get()))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.Run(ctx, rt); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			rt.Logger.Info("Gateway finishing")
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
