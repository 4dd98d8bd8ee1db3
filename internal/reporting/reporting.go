// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package reporting forwards unexpected errors to an external collector
// so an operator hears about them without tailing logs.
package reporting

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/actstream/actstream/internal/config"
)

// Reporter receives errors that indicate a defect rather than an
// expected runtime condition. Expected HTTP rejections (401s, 404s) are
// never reported.
type Reporter interface {
	CaptureException(err error)
	Close()
}

// FromConfig returns a collector-backed reporter, or a no-op one when no
// DSN is configured.
func FromConfig(cfg config.Sentry) (Reporter, error) {
	if cfg.DSN == "" {
		return NopReporter{}, nil
	}
	return NewSentryReporter(cfg)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) CaptureException(error) {}
func (NopReporter) Close()                 {}

// SentryReporter forwards errors to a hosted Sentry-compatible collector.
// It owns its hub so concurrent use does not share scope with other parts
// of the process.
type SentryReporter struct {
	hub *sentry.Hub
}

func NewSentryReporter(cfg config.Sentry) (*SentryReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, err
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (r *SentryReporter) CaptureException(err error) {
	r.hub.CaptureException(err)
}

// Close drains queued events. Bounded: shutdown must not hang on a dead
// collector.
func (r *SentryReporter) Close() {
	r.hub.Client().Flush(2 * time.Second)
}
