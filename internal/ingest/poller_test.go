// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actstream/actstream/internal/elasticsearch"
	"github.com/actstream/actstream/internal/keyvalue"
	"github.com/actstream/actstream/internal/keyvalue/keyvaluetest"
	"github.com/actstream/actstream/internal/reporting/reportingtest"
)

// pollerBackend answers the aggregate queries the poller runs. One index
// is aliased, one is not; every per-index count is 2.
type pollerBackend struct {
	aliasesFail    bool
	searchableFail bool
	verifierValue  string
}

func (b *pollerBackend) handler() http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		switch {
		case req.URL.Path == "/_aliases":
			if b.aliasesFail {
				http.Error(res, `{"error": "down"}`, http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(res, `{
				"activities__feed_id__first__date__20180101t000000__aaaaaaaa": {"aliases": {"activities": {}}},
				"activities__feed_id__first__date__20180101t111111__bbbbbbbb": {"aliases": {}}
			}`)
		case req.URL.Path == "/activities/_count":
			if b.searchableFail {
				http.Error(res, `{"error": "down"}`, http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(res, `{"count": 31}`)
		case strings.HasSuffix(req.URL.Path, "/_count"):
			fmt.Fprint(res, `{"count": 2}`)
		case req.URL.Path == "/activities/_search":
			fmt.Fprintf(res, `{"aggregations": {"verifier_activities": {"max_published": {"value": %s}}}}`, b.verifierValue)
		default:
			http.Error(res, `{"error": "unexpected"}`, http.StatusNotFound)
		}
	})
}

func newTestPoller(t *testing.T, backend *pollerBackend, store keyvalue.Store) *Poller {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)
	return &Poller{
		ES:       &elasticsearch.Client{Client: http.DefaultClient, Endpoint: server.URL},
		Store:    store,
		Metrics:  NewMetrics(),
		FeedIDs:  []string{"first"},
		Logger:   zap.NewNop(),
		Reporter: &reportingtest.Recorder{},
		Now:      func() time.Time { return time.Date(2018, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func TestPollerCachesRenderedMetrics(t *testing.T) {
	// 90 seconds before the poller's fixed clock, in epoch milliseconds.
	backend := &pollerBackend{verifierValue: "1514862155000"}
	store := keyvaluetest.New()
	poller := newTestPoller(t, backend, store)

	require.NoError(t, poller.sample(context.Background()))

	cached, ok := store.Value(keyvalue.MetricsKey)
	require.True(t, ok)
	exposition := string(cached)
	assert.Contains(t, exposition, `elasticsearch_activities_total{searchable="searchable"} 31`)
	assert.Contains(t, exposition, `elasticsearch_activities_total{searchable="nonsearchable"} 2`)
	assert.Contains(t, exposition, `elasticsearch_feed_activities_total{feed_unique_id="first",searchable="searchable"} 2`)
	assert.Contains(t, exposition, `elasticsearch_feed_activities_total{feed_unique_id="first",searchable="nonsearchable"} 2`)
	assert.Contains(t, exposition, `elasticsearch_activities_age_minimum_seconds{verification="verification"} 90`)
}

func TestPollerSkipsUnavailableGauges(t *testing.T) {
	backend := &pollerBackend{aliasesFail: true, verifierValue: "null"}
	store := keyvaluetest.New()
	poller := newTestPoller(t, backend, store)

	require.NoError(t, poller.sample(context.Background()))

	cached, ok := store.Value(keyvalue.MetricsKey)
	require.True(t, ok)
	exposition := string(cached)
	assert.Contains(t, exposition, `elasticsearch_activities_total{searchable="searchable"} 31`)
	assert.NotContains(t, exposition, `searchable="nonsearchable"`)
	assert.NotContains(t, exposition, "elasticsearch_feed_activities_total{")
	assert.NotContains(t, exposition, "elasticsearch_activities_age_minimum_seconds{")
}

func TestPollerPropagatesHardFailures(t *testing.T) {
	backend := &pollerBackend{searchableFail: true, verifierValue: "null"}
	store := keyvaluetest.New()
	poller := newTestPoller(t, backend, store)

	require.Error(t, poller.sample(context.Background()))

	_, ok := store.Value(keyvalue.MetricsKey)
	assert.False(t, ok, "a failed cycle must not cache a partial payload")
}

func TestPollerRunCachesUntilCancelled(t *testing.T) {
	backend := &pollerBackend{verifierValue: "1514862155000"}
	store := keyvaluetest.New()
	poller := newTestPoller(t, backend, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		_, ok := store.Value(keyvalue.MetricsKey)
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
