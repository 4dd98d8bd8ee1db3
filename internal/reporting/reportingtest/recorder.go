// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package reportingtest provides an in-memory Reporter for tests.
package reportingtest

import (
	"sync"

	"github.com/actstream/actstream/internal/reporting"
)

// Recorder collects captured errors.
type Recorder struct {
	mu     sync.Mutex
	errors []error
}

var _ reporting.Reporter = (*Recorder)(nil)

func (r *Recorder) CaptureException(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *Recorder) Close() {}

// Errors returns a copy of everything captured so far.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}
