// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package feeds adapts upstream activity sources to a common contract:
// where to start, how to authenticate against the upstream, how to turn
// one page into bulk insert items, and where the next page is.
package feeds

import (
	"fmt"
	"net/http"
	"time"

	"github.com/actstream/actstream/internal/config"
	"github.com/actstream/actstream/internal/elasticsearch"
)

// Feed is one upstream activity source.
type Feed interface {
	// UniqueID is the stable identifier embedded in index names.
	UniqueID() string
	// Seed is the URL pagination starts from.
	Seed() string
	// AuthHeaders returns the headers that authenticate a GET of url
	// against the upstream. Computed per request: some schemes embed
	// timestamps and nonces.
	AuthHeaders(url string) (http.Header, error)
	// ConvertToBulk turns one fetched page into bulk items targeting
	// indexName.
	ConvertToBulk(page []byte, indexName string) ([]elasticsearch.BulkItem, error)
	// NextHref returns the URL of the page after this one, empty when the
	// page is the last.
	NextHref(page []byte) string
	// PageInterval is how long to wait between pages of one cycle.
	PageInterval() time.Duration
	// SeedInterval is how long to wait after the last page before the
	// next cycle may start.
	SeedInterval() time.Duration
}

// FromConfig builds the adapter for one configured feed.
func FromConfig(cfg config.Feed) (Feed, error) {
	switch cfg.Type {
	case config.FeedTypeActivityStream:
		return newActivityStreamFeed(cfg), nil
	case config.FeedTypeZendesk:
		return newZendeskFeed(cfg), nil
	default:
		return nil, fmt.Errorf("unknown feed type %q", cfg.Type)
	}
}

// FromConfigs builds adapters for every configured feed.
func FromConfigs(cfgs []config.Feed) ([]Feed, error) {
	feeds := make([]Feed, 0, len(cfgs))
	for _, cfg := range cfgs {
		feed, err := FromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("feed %q: %w", cfg.UniqueID, err)
		}
		feeds = append(feeds, feed)
	}
	return feeds, nil
}

// interval converts configured seconds to a duration, or returns the
// adapter default when the configuration leaves it unset.
func interval(configured *float64, def time.Duration) time.Duration {
	if configured == nil {
		return def
	}
	return time.Duration(*configured * float64(time.Second))
}
