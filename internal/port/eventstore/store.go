// Package eventstore defines the append-only audit log port, implemented
// by the Postgres/pgx adapter for deployments that need a durable record
// beyond the bus's in-memory history.
package eventstore

import (
	"context"
	"time"

	"github.com/kestrel-run/orchestra/internal/domain/event"
)

// Filter narrows a Query to a plan, an entity, a time range, or a set of
// event types. Zero values mean "no filter on this dimension".
type Filter struct {
	PlanID    string
	EntityID  string
	Types     []event.Type
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// Page is one page of a paginated query result.
type Page struct {
	Events  []event.Event
	Total   int
	HasMore bool
}

// Store persists orchestrator events for later replay or audit.
type Store interface {
	Append(ctx context.Context, evt event.Event) error
	Query(ctx context.Context, filter Filter) (Page, error)
}
