// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package app assembles the ingester: the distributed lock, the feed
// supervisor and the metrics poller.
package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/actstream/actstream/cmd/internal/builder"
	"github.com/actstream/actstream/internal/feeds"
	"github.com/actstream/actstream/internal/ingest"
)

// Run ingests until the context is cancelled or the lock is lost. It
// blocks while another deployment holds the ingest lock, so a new
// release can start before the old one has finished shutting down.
func Run(ctx context.Context, rt *builder.Runtime) error {
	feedList, err := feeds.FromConfigs(rt.Config.Feeds)
	if err != nil {
		return err
	}

	locker := &ingest.Locker{Store: rt.Store, Logger: rt.Logger}
	if err := locker.Acquire(ctx); err != nil {
		return err
	}

	metrics := ingest.NewMetrics()
	supervisor := &ingest.Supervisor{
		ES:       rt.ES,
		Fetcher:  &feeds.Fetcher{Client: rt.HTTP, Logger: rt.Logger},
		Store:    rt.Store,
		Feeds:    feedList,
		Metrics:  metrics,
		Logger:   rt.Logger,
		Reporter: rt.Reporter,
	}
	poller := &ingest.Poller{
		ES:       rt.ES,
		Store:    rt.Store,
		Metrics:  metrics,
		FeedIDs:  rt.Config.FeedIDs(),
		Logger:   rt.Logger,
		Reporter: rt.Reporter,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return locker.KeepRefreshed(ctx)
	})
	g.Go(func() error {
		supervisor.Run(ctx)
		return ctx.Err()
	})
	g.Go(func() error {
		poller.Run(ctx)
		return ctx.Err()
	})
	return g.Wait()
}
