// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// maxFetchAttempts bounds how often one page fetch is retried when the
// upstream rate limits.
const maxFetchAttempts = 10

// Fetcher pulls feed pages over HTTP with the feed's own auth headers.
type Fetcher struct {
	Client *http.Client
	Logger *zap.Logger
}

// Fetch GETs one page. A 429 response with a Retry-After header is
// retried after the indicated delay, re-signing each attempt so
// timestamped auth schemes stay valid. Any other non-200, or running out
// of attempts, is an error; the caller's ingest cycle fails and is
// restarted later.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed, href string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		body, retryAfter, err := f.fetchOnce(ctx, feed, href)
		if err == nil {
			return body, nil
		}
		if retryAfter < 0 || attempt >= maxFetchAttempts {
			return nil, err
		}
		f.Logger.Debug("Rate limited by upstream, will retry",
			zap.String("feed", feed.UniqueID()),
			zap.Int("attempt", attempt),
			zap.Duration("retry_after", retryAfter))
		if err := sleep(ctx, retryAfter); err != nil {
			return nil, err
		}
	}
}

// fetchOnce returns retryAfter >= 0 only for responses that may be
// retried.
func (f *Fetcher) fetchOnce(ctx context.Context, feed Feed, href string) (body []byte, retryAfter time.Duration, err error) {
	headers, err := feed.AuthHeaders(href)
	if err != nil {
		return nil, -1, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, -1, err
	}
	for name, values := range headers {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	res, err := f.Client.Do(req)
	if err != nil {
		return nil, -1, err
	}
	defer res.Body.Close()
	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, -1, err
	}
	if res.StatusCode == http.StatusOK {
		return payload, -1, nil
	}
	err = fmt.Errorf("fetching %s failed, status code: %d, body: %s", href, res.StatusCode, payload)
	if res.StatusCode == http.StatusTooManyRequests {
		if seconds, parseErr := strconv.Atoi(res.Header.Get("Retry-After")); parseErr == nil && seconds >= 0 {
			return nil, time.Duration(seconds) * time.Second, err
		}
	}
	return nil, -1, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
