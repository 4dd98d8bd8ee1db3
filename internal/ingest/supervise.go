// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package ingest pulls every configured feed into the search backend,
// one full rebuild at a time, while holding the cross-deployment lock.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/actstream/actstream/internal/reporting"
)

// ExceptionInterval is how long a failed task waits before restarting.
const ExceptionInterval = 60 * time.Second

// RepeatUntilCancelled runs task until ctx is cancelled. Tasks are
// expected to run forever: an error is reported and the task restarted
// after interval; a clean return is anomalous and handled the same way,
// minus the report.
func RepeatUntilCancelled(ctx context.Context, logger *zap.Logger, reporter reporting.Reporter, interval time.Duration, task func(context.Context) error) {
	for {
		err := task(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error("Task raised an error, restarting",
				zap.Error(err),
				zap.Duration("restart_in", interval))
			reporter.CaptureException(err)
		} else {
			logger.Warn("Task finished without error. This is not expected: it should run forever. Restarting",
				zap.Duration("restart_in", interval))
		}
		if err := sleep(ctx, interval); err != nil {
			return
		}
	}
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
