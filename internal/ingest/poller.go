// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/actstream/actstream/internal/elasticsearch"
	"github.com/actstream/actstream/internal/keyvalue"
	"github.com/actstream/actstream/internal/reporting"
)

// metricsInterval is the sampling cadence. The poller also restarts at
// this interval after a failure rather than the usual exception interval.
const metricsInterval = time.Second

// Poller samples backend activity counts, renders the registry and
// caches the rendered payload in the key-value store, where the gateway
// serves it from.
type Poller struct {
	ES       *elasticsearch.Client
	Store    keyvalue.Store
	Metrics  *Metrics
	FeedIDs  []string
	Logger   *zap.Logger
	Reporter reporting.Reporter

	// Now is for tests; nil means time.Now.
	Now func() time.Time
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run polls until ctx is cancelled. Gauges whose source reports
// ErrMetricsUnavailable are skipped for the cycle and keep their last
// value; any other failure restarts the poller.
func (p *Poller) Run(ctx context.Context) {
	RepeatUntilCancelled(ctx, p.Logger.With(zap.String("task", "poll-metrics")), p.Reporter, metricsInterval, p.poll)
}

func (p *Poller) poll(ctx context.Context) error {
	for {
		if err := p.sample(ctx); err != nil {
			return err
		}
		if err := sleep(ctx, metricsInterval); err != nil {
			return err
		}
	}
}

func (p *Poller) sample(ctx context.Context) error {
	p.Logger.Debug("Polling metrics")

	searchable, err := p.ES.SearchableTotal(ctx)
	if err != nil {
		return err
	}
	p.Metrics.ActivitiesTotal.WithLabelValues("searchable").Set(float64(searchable))

	nonsearchable, err := p.ES.NonsearchableTotal(ctx)
	switch {
	case errors.Is(err, elasticsearch.ErrMetricsUnavailable):
	case err != nil:
		return err
	default:
		p.Metrics.ActivitiesTotal.WithLabelValues("nonsearchable").Set(float64(nonsearchable))
	}

	age, err := p.ES.MinVerificationAge(ctx, p.now())
	switch {
	case errors.Is(err, elasticsearch.ErrMetricsUnavailable):
	case err != nil:
		return err
	default:
		p.Metrics.AgeMinimum.WithLabelValues("verification").Set(age.Seconds())
	}

	for _, feedID := range p.FeedIDs {
		searchable, nonsearchable, err := p.ES.FeedActivitiesTotal(ctx, feedID)
		if errors.Is(err, elasticsearch.ErrMetricsUnavailable) {
			continue
		}
		if err != nil {
			return err
		}
		p.Metrics.FeedActivitiesTotal.WithLabelValues(feedID, "searchable").Set(float64(searchable))
		p.Metrics.FeedActivitiesTotal.WithLabelValues(feedID, "nonsearchable").Set(float64(nonsearchable))
	}

	rendered, err := p.Metrics.Render()
	if err != nil {
		return err
	}
	if err := p.Store.Set(ctx, keyvalue.MetricsKey, rendered, 0); err != nil {
		return err
	}
	p.Logger.Debug("Polling metrics: done")
	return nil
}
