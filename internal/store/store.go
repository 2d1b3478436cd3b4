// Package store persists agent runs and their transcripts.
package store

import (
	"context"
)

// Store is the minimal interface all stores must implement.
type Store interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// Filter defines query parameters for listing runs.
type Filter struct {
	Limit  int    // Maximum results (0 = no limit)
	Offset int    // Skip first N results
	State  string // Only runs in this state, empty for all
}

// DefaultFilter returns the newest 20 runs.
func DefaultFilter() Filter {
	return Filter{Limit: 20}
}

// WithLimit returns a copy of the filter with a new limit.
func (f Filter) WithLimit(n int) Filter {
	f.Limit = n
	return f
}

// WithOffset returns a copy of the filter with a new offset.
func (f Filter) WithOffset(n int) Filter {
	f.Offset = n
	return f
}

// WithState returns a copy of the filter restricted to one run state.
func (f Filter) WithState(state string) Filter {
	f.State = state
	return f
}
