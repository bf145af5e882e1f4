// Package store defines the aggregate persistence interface. The webhook
// subsystem defines its own store contract; the composite Store adds
// connection lifecycle. Backends: Redis and Memory.
package store

import (
	"context"

	"github.com/hookline/hookline/webhook"
)

// Store is the aggregate persistence interface. A single backend
// implements webhook persistence plus lifecycle.
type Store interface {
	webhook.Store

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
