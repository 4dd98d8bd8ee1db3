// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/actstream/actstream/internal/elasticsearch"
	"github.com/actstream/actstream/internal/keyvalue"
	"github.com/actstream/actstream/internal/reporting"
)

const (
	// paginationExpire is how long a public scroll id stays valid.
	// Clients are expected to walk pages promptly; the backend's own
	// scroll window is the longer stop.
	paginationExpire = 10 * time.Second

	// startupGracePeriod is how long after boot missing feed statuses
	// do not pull the service down, giving the ingester time to finish
	// its first cycles.
	startupGracePeriod = 30 * time.Second

	// verificationMaxAge is the oldest the most recent verification
	// activity may be for the backend to count as healthy.
	verificationMaxAge = 60 * time.Second
)

var activityContext = []any{
	"https://www.w3.org/ns/activitystreams",
	map[string]string{"dit": "https://www.trade.gov.uk/ns/activitystreams/v1"},
}

type apiHandlers struct {
	es       *elasticsearch.Client
	store    keyvalue.Store
	feedIDs  []string
	logger   *zap.Logger
	reporter reporting.Reporter
	startup  time.Time
	now      func() time.Time
}

func (h *apiHandlers) internalError(res http.ResponseWriter, req *http.Request, err error) {
	h.logger.Error("About to return 500",
		zap.Error(err),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path))
	h.reporter.CaptureException(err)
	writeDetails(res, http.StatusInternalServerError, msgUnknownError)
}

func (h *apiHandlers) secret(res http.ResponseWriter, _ *http.Request) {
	writeJSON(res, http.StatusOK, map[string]string{"secret": "to-be-hidden"})
}

// newScroll opens a fresh search, passing the caller's query string and
// body through to the backend untouched.
func (h *apiHandlers) newScroll(res http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		h.internalError(res, req, err)
		return
	}
	result, err := h.es.SearchActivities(req.Context(), req.URL.RawQuery, req.Header.Get("Content-Type"), body)
	if err != nil {
		h.internalError(res, req, err)
		return
	}
	h.writeSearchResult(res, req, result)
}

// existingScroll continues a search by its public id.
func (h *apiHandlers) existingScroll(res http.ResponseWriter, req *http.Request) {
	publicID := mux.Vars(req)["publicScrollID"]
	privateID, err := h.store.Get(req.Context(), keyvalue.ScrollKey(publicID))
	if errors.Is(err, keyvalue.ErrNotFound) {
		writeDetails(res, http.StatusNotFound, msgScrollNotFound)
		return
	}
	if err != nil {
		h.internalError(res, req, err)
		return
	}
	result, err := h.es.ContinueScroll(req.Context(), string(privateID))
	if err != nil {
		h.internalError(res, req, err)
		return
	}
	h.writeSearchResult(res, req, result)
}

// writeSearchResult renders a 200 backend reply as an ActivityStreams
// collection page and proxies everything else verbatim.
func (h *apiHandlers) writeSearchResult(res http.ResponseWriter, req *http.Request, result elasticsearch.SearchResult) {
	if result.Status != http.StatusOK {
		writeRaw(res, result.Status, "application/json; charset=utf-8", result.Body)
		return
	}
	page, err := elasticsearch.ParseSearchPage(result.Body)
	if err != nil {
		h.internalError(res, req, err)
		return
	}
	collection := map[string]any{
		"@context":     activityContext,
		"type":         "Collection",
		"orderedItems": page.Items,
	}
	if len(page.Items) == 0 {
		// json.RawMessage slices marshal to null when nil.
		collection["orderedItems"] = []any{}
	}
	if page.ScrollID != "" && len(page.Items) > 0 {
		next, err := h.publicScrollURL(req, page.ScrollID)
		if err != nil {
			h.internalError(res, req, err)
			return
		}
		collection["next"] = next
	}
	writeJSON(res, http.StatusOK, collection)
}

// publicScrollURL mints a public id for the backend's scroll id and
// returns the URL a caller follows for the next page.
func (h *apiHandlers) publicScrollURL(req *http.Request, privateID string) (string, error) {
	publicID, err := newPublicScrollID()
	if err != nil {
		return "", err
	}
	if err := h.store.Set(req.Context(), keyvalue.ScrollKey(publicID), []byte(privateID), paginationExpire); err != nil {
		return "", fmt.Errorf("storing scroll id: %w", err)
	}
	return req.Header.Get("X-Forwarded-Proto") + "://" + req.Host + "/v1/" + publicID, nil
}

// newPublicScrollID returns 8 URL-safe characters; the backend's scroll
// ids are long enough to leak tokens into logs if exposed raw.
func newPublicScrollID() (string, error) {
	raw := make([]byte, 6)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating scroll id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// check aggregates process health as plaintext, one line per component.
func (h *apiHandlers) check(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	redisGreen := false
	if err := h.store.Set(ctx, keyvalue.CheckKey, []byte("GREEN"), time.Second); err == nil {
		if value, err := h.store.Get(ctx, keyvalue.CheckKey); err == nil {
			redisGreen = bytes.Equal(value, []byte("GREEN"))
		}
	}

	esGreen := false
	if age, err := h.es.MinVerificationAge(ctx, h.now()); err == nil {
		esGreen = age < verificationMaxAge
	}

	inGrace := h.now().Sub(h.startup) <= startupGracePeriod

	keys := make([]string, 0, len(h.feedIDs))
	for _, id := range h.feedIDs {
		keys = append(keys, keyvalue.FeedStatusKey(id))
	}
	statuses, err := h.store.MGet(ctx, keys)
	if err != nil {
		h.internalError(res, req, err)
		return
	}

	allFeedsGreen := true
	var feedLines bytes.Buffer
	for i, id := range h.feedIDs {
		green := bytes.Equal(statuses[i], []byte("GREEN"))
		allFeedsGreen = allFeedsGreen && green
		feedLines.WriteString(id)
		if green {
			feedLines.WriteString(":GREEN\n")
		} else {
			feedLines.WriteString(":RED\n")
		}
	}

	up := redisGreen && esGreen && (allFeedsGreen || inGrace)

	var status bytes.Buffer
	if up {
		status.WriteString("__UP__")
	} else {
		status.WriteString("__DOWN__")
	}
	if inGrace {
		status.WriteString(" (IN_STARTUP_GRACE_PERIOD)")
	}
	status.WriteString("\n")
	status.WriteString("redis:" + colour(redisGreen) + "\n")
	status.WriteString("elasticsearch:" + colour(esGreen) + "\n")
	status.Write(feedLines.Bytes())

	res.Header().Set("Content-Type", "text/plain; charset=utf-8")
	res.WriteHeader(http.StatusOK)
	_, _ = res.Write(status.Bytes())
}

func colour(green bool) string {
	if green {
		return "GREEN"
	}
	return "RED"
}

// metrics serves whatever exposition the ingester's poller last cached.
func (h *apiHandlers) metrics(res http.ResponseWriter, req *http.Request) {
	payload, err := h.store.Get(req.Context(), keyvalue.MetricsKey)
	if err != nil && !errors.Is(err, keyvalue.ErrNotFound) {
		h.internalError(res, req, err)
		return
	}
	res.Header().Set("Content-Type", "text/plain; charset=utf-8")
	res.WriteHeader(http.StatusOK)
	_, _ = res.Write(payload)
}
