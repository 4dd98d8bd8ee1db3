// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/actstream/actstream/internal/keyvalue"
)

// ErrLockLost means the lease expired underneath us, usually because the
// process blocked for longer than the TTL.
var ErrLockLost = errors.New("ingest lock has been lost")

const (
	lockTTL             = 2 * time.Second
	lockAcquireInterval = time.Second
	lockRefreshInterval = time.Second
)

// Locker serialises ingestion across deployments. During a rolling
// deploy the new process waits in Acquire until the old one stops
// refreshing the lease. The lease is advisory, not strict mutual
// exclusion.
type Locker struct {
	Store  keyvalue.Store
	Logger *zap.Logger
}

// Acquire blocks until the lease is obtained or ctx is cancelled.
func (l *Locker) Acquire(ctx context.Context) error {
	for {
		acquired, err := l.Store.SetIfNotExists(ctx, keyvalue.LockKey, []byte("1"), lockTTL)
		if err != nil {
			return fmt.Errorf("acquiring ingest lock: %w", err)
		}
		if acquired {
			l.Logger.Info("Acquired ingest lock")
			return nil
		}
		l.Logger.Debug("Ingest lock held elsewhere, waiting")
		if err := sleep(ctx, lockAcquireInterval); err != nil {
			return err
		}
	}
}

// KeepRefreshed extends the lease every second until ctx is cancelled,
// returning ErrLockLost if an extension finds the lease gone. The lease
// is never re-acquired after loss; callers are expected to exit.
func (l *Locker) KeepRefreshed(ctx context.Context) error {
	for {
		if err := sleep(ctx, lockRefreshInterval); err != nil {
			return err
		}
		refreshed, err := l.Store.Expire(ctx, keyvalue.LockKey, lockTTL)
		if err != nil {
			return fmt.Errorf("extending ingest lock: %w", err)
		}
		if !refreshed {
			return ErrLockLost
		}
	}
}
