// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/actstream/actstream/internal/config"
	"github.com/actstream/actstream/internal/elasticsearch"
	"github.com/actstream/actstream/internal/hawk"
)

const (
	activityStreamPageInterval = 0 * time.Second
	activityStreamSeedInterval = 5 * time.Second
)

// activityStreamFeed reads a remote activity stream: pages are
// collections whose orderedItems are already in the normalised document
// shape, with an optional next link.
type activityStreamFeed struct {
	uniqueID     string
	seed         string
	credential   hawk.Credential
	pageInterval time.Duration
	seedInterval time.Duration
}

func newActivityStreamFeed(cfg config.Feed) *activityStreamFeed {
	return &activityStreamFeed{
		uniqueID: cfg.UniqueID,
		seed:     cfg.Seed,
		credential: hawk.Credential{
			KeyID:  cfg.AccessKeyID,
			Secret: cfg.SecretAccessKey,
		},
		pageInterval: interval(cfg.PollingPageInterval, activityStreamPageInterval),
		seedInterval: interval(cfg.PollingSeedInterval, activityStreamSeedInterval),
	}
}

func (f *activityStreamFeed) UniqueID() string            { return f.uniqueID }
func (f *activityStreamFeed) Seed() string                { return f.seed }
func (f *activityStreamFeed) PageInterval() time.Duration { return f.pageInterval }
func (f *activityStreamFeed) SeedInterval() time.Duration { return f.seedInterval }

// AuthHeaders signs the GET with a MAC over an empty body and empty
// content type, matching what the upstream verifies for reads.
func (f *activityStreamFeed) AuthHeaders(href string) (http.Header, error) {
	u, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("parsing feed url: %w", err)
	}
	header, err := hawk.NewHeader(f.credential, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, err
	}
	return http.Header{"Authorization": []string{header}}, nil
}

func (f *activityStreamFeed) ConvertToBulk(page []byte, indexName string) ([]elasticsearch.BulkItem, error) {
	var parsed struct {
		OrderedItems []map[string]any `json:"orderedItems"`
	}
	if err := json.Unmarshal(page, &parsed); err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	items := make([]elasticsearch.BulkItem, 0, len(parsed.OrderedItems))
	for _, activity := range parsed.OrderedItems {
		id, ok := activity["id"].(string)
		if !ok {
			return nil, fmt.Errorf("activity without a string id: %v", activity)
		}
		items = append(items, elasticsearch.BulkItem{
			Action: elasticsearch.NewIndexAction(indexName, id),
			Source: activity,
		})
	}
	return items, nil
}

func (f *activityStreamFeed) NextHref(page []byte) string {
	var parsed struct {
		Next string `json:"next"`
	}
	if err := json.Unmarshal(page, &parsed); err != nil {
		return ""
	}
	return parsed.Next
}
