// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/actstream/actstream/internal/elasticsearch"
	"github.com/actstream/actstream/internal/feeds"
	"github.com/actstream/actstream/internal/keyvalue"
	"github.com/actstream/actstream/internal/reporting"
)

// feedStatusGrace pads the feed status TTL beyond one polling cycle so a
// healthy feed's flag never expires between rebuilds.
const feedStatusGrace = 120 * time.Second

// Supervisor rebuilds every configured feed's index over and over. Each
// rebuild writes into a brand new index and swaps the read alias only
// when the index is complete, so readers always see a whole generation.
type Supervisor struct {
	ES       *elasticsearch.Client
	Fetcher  *feeds.Fetcher
	Store    keyvalue.Store
	Feeds    []feeds.Feed
	Metrics  *Metrics
	Logger   *zap.Logger
	Reporter reporting.Reporter

	// Now is for tests; nil means time.Now.
	Now func() time.Time
}

func (s *Supervisor) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run ingests until ctx is cancelled. The whole run is restart-wrapped:
// a failure anywhere before the per-feed tasks start (such as garbage
// collection) retries after the exception interval.
func (s *Supervisor) Run(ctx context.Context) {
	RepeatUntilCancelled(ctx, s.Logger.With(zap.String("task", "ingest")), s.Reporter, ExceptionInterval, s.cycle)
}

// cycle deletes indices belonging to feeds no longer configured, then
// polls every feed until cancellation.
func (s *Supervisor) cycle(ctx context.Context) error {
	feedIDs := make([]string, 0, len(s.Feeds))
	for _, feed := range s.Feeds {
		feedIDs = append(feedIDs, feed.UniqueID())
	}

	withoutAlias, withAlias, err := s.ES.IndexNames(ctx)
	if err != nil {
		return err
	}
	toDelete := elasticsearch.NamesMatchingNoFeed(append(withoutAlias, withAlias...), feedIDs)
	if len(toDelete) > 0 {
		s.Logger.Info("Deleting indices of feeds no longer configured", zap.Strings("indices", toDelete))
		if err := s.ES.DeleteIndexes(ctx, toDelete); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	for _, feed := range s.Feeds {
		feed := feed
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger := s.Logger.With(zap.String("task", "poll-feed"), zap.String("feed", feed.UniqueID()))
			RepeatUntilCancelled(ctx, logger, s.Reporter, ExceptionInterval, func(ctx context.Context) error {
				return s.pollFeed(ctx, feed)
			})
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// pollFeed rebuilds one feed forever. An error aborts the current
// rebuild; the restart wrapper begins a fresh one, with a fresh index
// name, after the exception interval.
func (s *Supervisor) pollFeed(ctx context.Context, feed feeds.Feed) error {
	for {
		if err := s.ingestFeed(ctx, feed); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// ingestFeed performs one full rebuild: delete this feed's abandoned
// write indices, create a fresh one, walk every page into it, then make
// it live with an atomic alias swap and mark the feed healthy.
func (s *Supervisor) ingestFeed(ctx context.Context, feed feeds.Feed) (err error) {
	logger := s.Logger.With(zap.String("feed", feed.UniqueID()))
	logger.Debug("Full ingest starting")

	s.Metrics.InprogressIngests.Inc()
	start := time.Now()
	defer func() {
		s.Metrics.InprogressIngests.Dec()
		status := "success"
		if err != nil {
			status = "failure"
		}
		s.Metrics.FeedDuration.WithLabelValues(feed.UniqueID(), status).Observe(time.Since(start).Seconds())
	}()

	withoutAlias, _, err := s.ES.IndexNames(ctx)
	if err != nil {
		return err
	}
	abandoned := elasticsearch.NamesMatchingFeed(withoutAlias, feed.UniqueID())
	if len(abandoned) > 0 {
		logger.Debug("Deleting abandoned indices", zap.Strings("indices", abandoned))
		if err := s.ES.DeleteIndexes(ctx, abandoned); err != nil {
			return err
		}
	}

	indexName := elasticsearch.NewIndexName(feed.UniqueID(), s.now())
	logger.Debug("Creating index", zap.String("index", indexName))
	if err := s.ES.CreateIndex(ctx, indexName); err != nil {
		return err
	}
	if err := s.ES.CreateMapping(ctx, indexName); err != nil {
		return err
	}

	href := feed.Seed()
	for href != "" {
		next, err := s.ingestPage(ctx, feed, indexName, href)
		if err != nil {
			return err
		}
		wait := feed.PageInterval()
		if next == "" {
			wait = feed.SeedInterval()
		}
		logger.Debug("Page ingested", zap.String("href", href), zap.Duration("wait", wait))
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		href = next
	}

	logger.Debug("Refreshing index", zap.String("index", indexName))
	if err := s.ES.RefreshIndex(ctx, indexName); err != nil {
		return err
	}

	_, withAlias, err := s.ES.IndexNames(ctx)
	if err != nil {
		return err
	}
	logger.Debug("Swapping alias", zap.String("index", indexName))
	if err := s.ES.SwapAlias(ctx, feed.UniqueID(), indexName, withAlias); err != nil {
		return err
	}

	statusTTL := feed.SeedInterval() + feedStatusGrace
	if err := s.Store.Set(ctx, keyvalue.FeedStatusKey(feed.UniqueID()), []byte("GREEN"), statusTTL); err != nil {
		return err
	}
	logger.Debug("Full ingest done", zap.String("index", indexName))
	return nil
}

// ingestPage pulls one page, converts it, and pushes the activities to
// the write index. It returns the next page URL, empty on the last page.
func (s *Supervisor) ingestPage(ctx context.Context, feed feeds.Feed, indexName, href string) (string, error) {
	total := prometheus.NewTimer(s.Metrics.PageDuration.WithLabelValues(feed.UniqueID(), "total"))
	defer total.ObserveDuration()

	pull := prometheus.NewTimer(s.Metrics.PageDuration.WithLabelValues(feed.UniqueID(), "pull"))
	page, err := s.Fetcher.Fetch(ctx, feed, href)
	pull.ObserveDuration()
	if err != nil {
		return "", err
	}

	items, err := feed.ConvertToBulk(page, indexName)
	if err != nil {
		return "", err
	}

	push := prometheus.NewTimer(s.Metrics.PageDuration.WithLabelValues(feed.UniqueID(), "push"))
	err = s.ES.Bulk(ctx, items)
	push.ObserveDuration()
	if err != nil {
		return "", err
	}
	s.Metrics.ActivitiesNonunique.WithLabelValues(feed.UniqueID()).Add(float64(len(items)))

	return feed.NextHref(page), nil
}
