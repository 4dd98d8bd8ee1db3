// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package builder wires the dependencies shared by the service binaries.
package builder

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/actstream/actstream/internal/config"
	"github.com/actstream/actstream/internal/elasticsearch"
	"github.com/actstream/actstream/internal/keyvalue"
	"github.com/actstream/actstream/internal/reporting"
	"github.com/actstream/actstream/internal/sigv4"
)

// requestTimeout caps every outbound HTTP request, to feeds and to the
// search backend alike.
const requestTimeout = 30 * time.Second

// Runtime is the set of dependencies most executables need: parsed
// configuration, logging, error reporting, the key/value store and the
// signed search backend client. One HTTP client is shared by all
// outbound requests.
type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	Reporter reporting.Reporter
	Store    *keyvalue.RedisStore
	ES       *elasticsearch.Client
	HTTP     *http.Client
}

// New builds the runtime from the process environment.
func New(environ []string) (*Runtime, error) {
	cfg, err := config.FromEnviron(environ)
	if err != nil {
		return nil, err
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	reporter, err := reporting.FromConfig(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("initialising error reporting: %w", err)
	}
	store, err := keyvalue.NewRedis(cfg.RedisURI)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: requestTimeout}
	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Reporter: reporter,
		Store:    store,
		ES: &elasticsearch.Client{
			Client:   client,
			Endpoint: cfg.Elasticsearch.Endpoint(),
			Signer: &sigv4.Signer{
				AccessKeyID:     cfg.Elasticsearch.AWSAccessKeyID,
				SecretAccessKey: cfg.Elasticsearch.AWSSecretAccessKey,
				Region:          cfg.Elasticsearch.Region,
				Service:         "es",
			},
		},
		HTTP: client,
	}, nil
}

// Close releases what New opened.
func (r *Runtime) Close() {
	r.Reporter.Close()
	if err := r.Store.Close(); err != nil {
		r.Logger.Error("Failed to close key value store", zap.Error(err))
	}
	_ = r.Logger.Sync()
}
