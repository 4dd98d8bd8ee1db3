// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrMetricsUnavailable marks metrics that legitimately cannot be
// computed right now, e.g. counts over indices that an alias swap removed
// mid-enumeration. Collectors skip these rather than fail the whole
// gather.
var ErrMetricsUnavailable = errors.New("metrics unavailable")

// verifierObjectType identifies activities published by the verification
// feed's own heartbeat. Their recency proves end-to-end ingestion works.
const verifierObjectType = "dit:activityStreamVerificationFeed:Verifier"

// verificationAgeQuery finds the most recent verifier activity.
const verificationAgeQuery = `{"aggs":{"verifier_activities":{"aggs":{"max_published":{"max":{"field":"published"}}},"filter":{"term":{"object.type":"` + verifierObjectType + `"}}}},"size":0}`

// count runs _count over the given index names. No names means nothing to
// count.
func (c *Client) count(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	path := "/" + strings.Join(names, ",") + "/_count"
	status, body, err := c.request(ctx, http.MethodGet, path, "", "application/json", nil)
	if err != nil {
		return 0, err
	}
	if err := requireSuccess("count "+path, status, body); err != nil {
		return 0, err
	}
	var result struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("parsing count response: %w", err)
	}
	return result.Count, nil
}

// SearchableTotal counts activities reachable through the alias. The
// alias always exists once the first feed has ingested, so failures here
// are real errors.
func (c *Client) SearchableTotal(ctx context.Context) (int64, error) {
	return c.count(ctx, []string{Alias})
}

// NonsearchableTotal counts activities sitting in indices not yet behind
// the alias. Those indices appear and vanish as ingests progress, so any
// failure is reported as unavailable rather than as an error.
func (c *Client) NonsearchableTotal(ctx context.Context) (int64, error) {
	withoutAlias, _, err := c.IndexNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMetricsUnavailable, err)
	}
	total, err := c.count(ctx, withoutAlias)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMetricsUnavailable, err)
	}
	return total, nil
}

// FeedActivitiesTotal counts one feed's activities on both sides of the
// alias. Indices are enumerated first so a swap between the two counts
// reports as unavailable instead of double counting.
func (c *Client) FeedActivitiesTotal(ctx context.Context, feedID string) (searchable, nonsearchable int64, err error) {
	withoutAlias, withAlias, err := c.IndexNames(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMetricsUnavailable, err)
	}
	searchable, err = c.count(ctx, NamesMatchingFeed(withAlias, feedID))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMetricsUnavailable, err)
	}
	nonsearchable, err = c.count(ctx, NamesMatchingFeed(withoutAlias, feedID))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMetricsUnavailable, err)
	}
	return searchable, nonsearchable, nil
}

// MinVerificationAge reports how long ago the newest verifier activity
// was published. No verifier activity at all means verification cannot be
// proven, which callers treat the same as an unavailable backend.
func (c *Client) MinVerificationAge(ctx context.Context, now time.Time) (time.Duration, error) {
	status, body, err := c.request(ctx, http.MethodGet, "/"+Alias+"/_search", "", "application/json", []byte(verificationAgeQuery))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMetricsUnavailable, err)
	}
	if err := requireSuccess("verification age search", status, body); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMetricsUnavailable, err)
	}
	var result struct {
		Aggregations struct {
			VerifierActivities struct {
				MaxPublished struct {
					Value *float64 `json:"value"`
				} `json:"max_published"`
			} `json:"verifier_activities"`
		} `json:"aggregations"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("%w: parsing aggregation response: %v", ErrMetricsUnavailable, err)
	}
	value := result.Aggregations.VerifierActivities.MaxPublished.Value
	if value == nil {
		return 0, fmt.Errorf("%w: no verification activities indexed", ErrMetricsUnavailable)
	}
	return now.Sub(time.UnixMilli(int64(*value))), nil
}
