// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// BulkItem is one document insert: the action line followed by the
// document source, both rendered as single-line JSON.
type BulkItem struct {
	Action map[string]any
	Source map[string]any
}

// NewIndexAction builds the action line that inserts a document into the
// named index under the given id. Re-ingesting the same id overwrites the
// earlier copy, which is what makes full re-ingestion idempotent.
func NewIndexAction(index, id string) map[string]any {
	return map[string]any{
		"index": map[string]any{
			"_id":    id,
			"_index": index,
			"_type":  "_doc",
		},
	}
}

// EncodeBulk renders items as newline-delimited JSON, including the
// trailing newline the bulk endpoint requires. Object keys marshal in
// sorted order, so the payload bytes are deterministic for a given input,
// which keeps request signatures reproducible.
func EncodeBulk(items []BulkItem) ([]byte, error) {
	var buf bytes.Buffer
	for _, item := range items {
		action, err := json.Marshal(item.Action)
		if err != nil {
			return nil, err
		}
		source, err := json.Marshal(item.Source)
		if err != nil {
			return nil, err
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(source)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Bulk inserts the given items. An empty batch is a no-op rather than a
// round trip, since feeds routinely emit pages with no new activities.
func (c *Client) Bulk(ctx context.Context, items []BulkItem) error {
	if len(items) == 0 {
		return nil
	}
	payload, err := EncodeBulk(items)
	if err != nil {
		return err
	}
	status, body, err := c.request(ctx, http.MethodPost, "/_bulk", "", "application/x-ndjson", payload)
	if err != nil {
		return err
	}
	if err := requireSuccess("bulk insert", status, body); err != nil {
		return err
	}
	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing bulk response: %w", err)
	}
	if result.Errors {
		return NewResponseError(fmt.Errorf("bulk insert failed for some items, body: %s", body), status, body)
	}
	return nil
}
