// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	indexPrefix = Alias + "_"

	// activityMapping pins the fields the gateway and the metrics
	// queries depend on. Everything else stays dynamically mapped.
	activityMapping = `{"properties":{"object.type":{"type":"keyword"},"published":{"type":"date"},"type":{"type":"keyword"}}}`
)

// NewIndexName returns a fresh, globally unique index name for one feed.
// The feed id is recoverable from the name by substring lookup, which is
// what ties live indices back to configured feeds.
func NewIndexName(feedID string, now time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s__feed_id__%s__date__%s__%s",
		Alias, feedID, now.UTC().Format("20060102t150405"), suffix)
}

// feedMarker is the substring that appears in an index name exactly when
// the index belongs to the given feed.
func feedMarker(feedID string) string {
	return "__feed_id__" + feedID + "__"
}

// IndexNames enumerates backend indices owned by this system, split into
// the ones not behind the alias and the ones behind it. Indices created
// by other tenants of the cluster are ignored.
func (c *Client) IndexNames(ctx context.Context) (withoutAlias, withAlias []string, err error) {
	status, body, err := c.request(ctx, http.MethodGet, "/_aliases", "", "application/json", nil)
	if err != nil {
		return nil, nil, err
	}
	if err := requireSuccess("get aliases", status, body); err != nil {
		return nil, nil, err
	}
	var indices map[string]struct {
		Aliases map[string]json.RawMessage `json:"aliases"`
	}
	if err := json.Unmarshal(body, &indices); err != nil {
		return nil, nil, fmt.Errorf("parsing aliases response: %w", err)
	}
	for name, index := range indices {
		if !strings.HasPrefix(name, indexPrefix) {
			continue
		}
		if _, ok := index.Aliases[Alias]; ok {
			withAlias = append(withAlias, name)
		} else {
			withoutAlias = append(withoutAlias, name)
		}
	}
	return withoutAlias, withAlias, nil
}

// NamesMatchingFeed filters names down to the ones belonging to feedID.
func NamesMatchingFeed(names []string, feedID string) []string {
	var matched []string
	for _, name := range names {
		if strings.Contains(name, feedMarker(feedID)) {
			matched = append(matched, name)
		}
	}
	return matched
}

// NamesMatchingNoFeed filters names down to the ones belonging to none of
// the given feeds. These are left over from feeds removed from the
// configuration and are subject to cleanup.
func NamesMatchingNoFeed(names []string, feedIDs []string) []string {
	var matched []string
	for _, name := range names {
		owned := false
		for _, feedID := range feedIDs {
			if strings.Contains(name, feedMarker(feedID)) {
				owned = true
				break
			}
		}
		if !owned {
			matched = append(matched, name)
		}
	}
	return matched
}

// CreateIndex creates an empty index. A concurrent or earlier creation of
// the same name is not an error.
func (c *Client) CreateIndex(ctx context.Context, name string) error {
	status, body, err := c.request(ctx, http.MethodPut, "/"+name, "", "application/json", []byte("{}"))
	if err != nil {
		return err
	}
	if bytes.Contains(body, []byte("resource_already_exists_exception")) {
		return nil
	}
	return requireSuccess("create index "+name, status, body)
}

// CreateMapping applies the activity document mapping to an index. It
// must run before the first bulk insert so date fields index correctly.
func (c *Client) CreateMapping(ctx context.Context, name string) error {
	status, body, err := c.request(ctx, http.MethodPut, "/"+name+"/_mapping/_doc", "", "application/json", []byte(activityMapping))
	if err != nil {
		return err
	}
	return requireSuccess("create mapping of "+name, status, body)
}

// RefreshIndex makes everything ingested so far searchable.
func (c *Client) RefreshIndex(ctx context.Context, name string) error {
	status, body, err := c.request(ctx, http.MethodPost, "/"+name+"/_refresh", "", "application/json", nil)
	if err != nil {
		return err
	}
	return requireSuccess("refresh index "+name, status, body)
}

// SwapAlias atomically points the alias at newIndex, removing the
// previously aliased indices of the same feed in the same operation.
// Readers therefore always see exactly one complete generation per feed.
func (c *Client) SwapAlias(ctx context.Context, feedID, newIndex string, aliased []string) error {
	actions := make([]map[string]any, 0, len(aliased)+1)
	for _, name := range NamesMatchingFeed(aliased, feedID) {
		actions = append(actions, map[string]any{
			"remove": map[string]any{"index": name, "alias": Alias},
		})
	}
	actions = append(actions, map[string]any{
		"add": map[string]any{"index": newIndex, "alias": Alias},
	})
	payload, err := json.Marshal(map[string]any{"actions": actions})
	if err != nil {
		return err
	}
	status, body, err := c.request(ctx, http.MethodPost, "/_aliases", "", "application/json", payload)
	if err != nil {
		return err
	}
	return requireSuccess("swap alias to "+newIndex, status, body)
}

// DeleteIndexes removes the given indices, attempting every one even if
// some deletions fail.
func (c *Client) DeleteIndexes(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		status, body, err := c.request(ctx, http.MethodDelete, "/"+name, "", "application/json", nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := requireSuccess("delete index "+name, status, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
