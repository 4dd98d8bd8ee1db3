// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package app assembles the gateway HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/actstream/actstream/cmd/internal/builder"
	"github.com/actstream/actstream/internal/gateway"
)

const (
	shutdownTimeout = 5 * time.Second
	// quiescence lets accepted sockets finish tearing down after
	// Shutdown returns, before the process exits.
	quiescence = 250 * time.Millisecond
)

// Run serves the public API until the context is cancelled.
func Run(ctx context.Context, rt *builder.Runtime) error {
	handler := gateway.NewHandler(gateway.Params{
		ES:          rt.ES,
		Store:       rt.Store,
		KeyPairs:    rt.Config.IncomingAccessKeyPairs,
		IPWhitelist: rt.Config.IncomingIPWhitelist,
		FeedIDs:     rt.Config.FeedIDs(),
		Logger:      rt.Logger,
		Reporter:    rt.Reporter,
	})
	server := &http.Server{
		Addr:              ":" + rt.Config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rt.Logger.Info("Starting HTTP server", zap.String("addr", server.Addr))
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		time.Sleep(quiescence)
		if err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return ctx.Err()
	})
	return g.Wait()
}
