// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package keyvaluetest provides an in-memory keyvalue.Store with a manual
// clock for tests.
package keyvaluetest

import (
	"context"
	"sync"
	"time"

	"github.com/actstream/actstream/internal/keyvalue"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Store is an in-memory keyvalue.Store. TTLs only elapse through Advance,
// so tests control expiry deterministically. Setting FailWith makes every
// subsequent operation return that error.
type Store struct {
	mu       sync.Mutex
	now      time.Time
	data     map[string]entry
	failWith error
}

var _ keyvalue.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:  time.Unix(1_000_000, 0),
		data: map[string]entry{},
	}
}

// Advance moves the fake clock forward, expiring entries on the way.
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

// FailWith makes every following operation fail with err; nil restores
// normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) live(key string) ([]byte, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !s.now.Before(e.expiresAt) {
		delete(s.data, key)
		return nil, false
	}
	return e.value, true
}

func (s *Store) put(key string, value []byte, ttl time.Duration) {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now.Add(ttl)
	}
	s.data[key] = e
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	value, ok := s.live(key)
	if !ok {
		return nil, keyvalue.ErrNotFound
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.put(key, value, ttl)
	return nil
}

func (s *Store) SetIfNotExists(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	if _, exists := s.live(key); exists {
		return false, nil
	}
	s.put(key, value, ttl)
	return true, nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	value, ok := s.live(key)
	if !ok {
		return false, nil
	}
	s.put(key, value, ttl)
	return true, nil
}

func (s *Store) MGet(_ context.Context, keys []string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	values := make([][]byte, len(keys))
	for i, key := range keys {
		if value, ok := s.live(key); ok {
			values[i] = value
		}
	}
	return values, nil
}

// Delete removes a key outright, simulating external expiry or eviction.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Value returns the current live value for assertions.
func (s *Store) Value(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.live(key)
	return value, ok
}
