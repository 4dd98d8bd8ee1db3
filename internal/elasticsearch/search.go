// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// scrollWindow is how long the backend keeps a search context alive
// between pages. Clients page faster than this or start over.
const scrollWindow = "15s"

// SearchResult is the backend's verbatim reply to a proxied search.
type SearchResult struct {
	Status int
	Body   []byte
}

// SearchActivities runs a search over the alias with the caller's query
// string and body passed through untouched, plus a scroll window so the
// caller can page. The reply is returned verbatim whatever the status;
// interpreting backend errors is the caller's concern.
func (c *Client) SearchActivities(ctx context.Context, rawQuery, contentType string, body []byte) (SearchResult, error) {
	query := "scroll=" + scrollWindow
	if rawQuery != "" {
		query = rawQuery + "&" + query
	}
	status, resBody, err := c.request(ctx, http.MethodGet, "/"+Alias+"/_search", query, contentType, body)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Status: status, Body: resBody}, nil
}

// ContinueScroll fetches the next page of an earlier search.
func (c *Client) ContinueScroll(ctx context.Context, scrollID string) (SearchResult, error) {
	payload, err := json.Marshal(map[string]any{"scroll_id": scrollID})
	if err != nil {
		return SearchResult{}, err
	}
	status, resBody, err := c.request(ctx, http.MethodGet, "/_search/scroll", "scroll="+scrollWindow, "application/json", payload)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Status: status, Body: resBody}, nil
}

// SearchPage is the part of a successful search reply the gateway needs:
// the hit sources in order, and the scroll id for the next page if the
// backend issued one.
type SearchPage struct {
	ScrollID string
	Items    []json.RawMessage
}

// ParseSearchPage extracts the page from a 200 search reply. Hit sources
// stay raw so their field order survives re-serialization.
func ParseSearchPage(body []byte) (SearchPage, error) {
	var parsed struct {
		ScrollID string `json:"_scroll_id"`
		Hits     struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return SearchPage{}, fmt.Errorf("parsing search response: %w", err)
	}
	page := SearchPage{ScrollID: parsed.ScrollID}
	for _, hit := range parsed.Hits.Hits {
		page.Items = append(page.Items, hit.Source)
	}
	return page, nil
}
