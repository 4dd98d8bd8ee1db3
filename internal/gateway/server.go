// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package gateway serves the public API: Hawk-authenticated activity
// search backed by the shared alias, plus unauthenticated health and
// metrics endpoints. It never writes to Elasticsearch; the ingester
// owns the indices.
package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/actstream/actstream/internal/config"
	"github.com/actstream/actstream/internal/elasticsearch"
	"github.com/actstream/actstream/internal/keyvalue"
	"github.com/actstream/actstream/internal/reporting"
)

// Params holds what the handler needs. Now is for tests; nil means the
// wall clock.
type Params struct {
	ES          *elasticsearch.Client
	Store       keyvalue.Store
	KeyPairs    []config.KeyPair
	IPWhitelist []string
	FeedIDs     []string
	Logger      *zap.Logger
	Reporter    reporting.Reporter
	Now         func() time.Time
}

// NewHandler assembles the routes and middleware. The health check's
// startup grace period starts counting here.
func NewHandler(params Params) http.Handler {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	api := &apiHandlers{
		es:       params.ES,
		store:    params.Store,
		feedIDs:  params.FeedIDs,
		logger:   params.Logger,
		reporter: params.Reporter,
		startup:  now(),
		now:      now,
	}
	auth := newAuthenticator(params.KeyPairs, params.IPWhitelist, params.Store,
		params.Logger, params.Reporter, now)

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
		writeDetails(res, http.StatusNotFound, msgNotFound)
	})

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(auth.authenticate, auth.authorize)
	v1.HandleFunc("/", api.secret).Methods(http.MethodPost)
	v1.HandleFunc("/", api.newScroll).Methods(http.MethodGet)
	v1.HandleFunc("/{publicScrollID}", api.existingScroll).Methods(http.MethodGet)

	router.HandleFunc("/check", api.check).Methods(http.MethodGet)
	router.HandleFunc("/metrics", api.metrics).Methods(http.MethodGet)

	var handler http.Handler = router
	handler = requestLogger(params.Logger)(handler)
	handler = handlers.CompressHandler(handler)
	handler = recoverPanics(params.Logger, params.Reporter)(handler)
	return handler
}
