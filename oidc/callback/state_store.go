// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"

	"github.com/hashicorp/cap-adfs/oidc"
	"github.com/jellydator/ttlcache/v3"
)

// StateReader defines an interface for finding and reading an oidc.State.
// Implementations must be concurrently safe, since the reader will likely be
// used within a concurrent http.Handler.
type StateReader interface {
	// Read an existing State entry.  The returned state's ID() must match
	// the stateID used to look it up.  A state can only be read once.
	Read(ctx context.Context, stateID string) (oidc.State, error)
}

// StateStore keeps the states of in-flight authentication requests.
type StateStore interface {
	StateReader

	// Write a new State entry, keyed by its ID().
	Write(ctx context.Context, s oidc.State) error
}

// MemoryStateStore is an in-memory StateStore.  Entries are dropped after the
// store's TTL even when never read.
type MemoryStateStore struct {
	c *ttlcache.Cache[string, oidc.State]
}

var _ StateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore creates a MemoryStateStore.  Start must be called to
// begin evicting expired entries and Stop to release it.
//
// Supported options:
//   - WithStateTTL
//   - WithCapacity
func NewMemoryStateStore(opt ...oidc.Option) *MemoryStateStore {
	opts := getOpts(opt...)
	return &MemoryStateStore{
		c: ttlcache.New[string, oidc.State](
			ttlcache.WithTTL[string, oidc.State](opts.withStateTTL),
			ttlcache.WithDisableTouchOnHit[string, oidc.State](),
			ttlcache.WithCapacity[string, oidc.State](opts.withCapacity),
		),
	}
}

// Start evicting expired entries in the background.
func (s *MemoryStateStore) Start() {
	go s.c.Start()
}

// Stop evicting expired entries.
func (s *MemoryStateStore) Stop() {
	s.c.Stop()
}

// Write implements StateStore.
func (s *MemoryStateStore) Write(_ context.Context, st oidc.State) error {
	const op = "MemoryStateStore.Write"
	if st == nil {
		return fmt.Errorf("%s: state is nil: %w", op, oidc.ErrNilParameter)
	}
	if st.ID() == "" {
		return fmt.Errorf("%s: state id is empty: %w", op, oidc.ErrInvalidParameter)
	}
	s.c.Set(st.ID(), st, ttlcache.DefaultTTL)
	return nil
}

// Read implements StateReader.  The state is removed by the read.
func (s *MemoryStateStore) Read(_ context.Context, stateID string) (oidc.State, error) {
	const op = "MemoryStateStore.Read"
	if stateID == "" {
		return nil, fmt.Errorf("%s: state id is empty: %w", op, oidc.ErrInvalidParameter)
	}
	item, ok := s.c.GetAndDelete(stateID)
	if !ok || item == nil || item.IsExpired() {
		return nil, fmt.Errorf("%s: state %s: %w", op, stateID, oidc.ErrNotFound)
	}
	return item.Value(), nil
}

// Len returns the number of states currently kept.
func (s *MemoryStateStore) Len() int {
	return s.c.Len()
}
