// Package postgres implements the eventstore.Store port as an
// append-only log in Postgres via pgx, with schema migrations managed
// by goose.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kestrel-run/orchestra/internal/domain/event"
	"github.com/kestrel-run/orchestra/internal/port/eventstore"
)

// Store persists orchestrator events to a single append-only table.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Append(ctx context.Context, evt event.Event) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`insert into orchestrator_events (type, entity_id, plan_id, data, occurred_at) values ($1, $2, $3, $4, $5)`,
		string(evt.Type), evt.EntityID, evt.PlanID, data, evt.Timestamp,
	)
	return err
}

// Broadcast satisfies broadcast.Broadcaster by appending to the audit
// log, letting the Store sit directly in the orchestrator's fan-out
// alongside the websocket hub and NATS replay adapters.
func (s *Store) Broadcast(ctx context.Context, evt event.Event) error {
	return s.Append(ctx, evt)
}

func (s *Store) Query(ctx context.Context, filter eventstore.Filter) (eventstore.Page, error) {
	query := `select type, entity_id, plan_id, data, occurred_at from orchestrator_events where true`
	args := []any{}
	argN := 1

	if filter.PlanID != "" {
		query += fmt.Sprintf(" and plan_id = $%d", argN)
		args = append(args, filter.PlanID)
		argN++
	}
	if filter.EntityID != "" {
		query += fmt.Sprintf(" and entity_id = $%d", argN)
		args = append(args, filter.EntityID)
		argN++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" and occurred_at >= $%d", argN)
		args = append(args, filter.Since)
		argN++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(" and occurred_at <= $%d", argN)
		args = append(args, filter.Until)
		argN++
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query += fmt.Sprintf(" and type = any($%d)", argN)
		args = append(args, types)
		argN++
	}

	query += " order by occurred_at desc"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" limit %d offset %d", limit+1, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return eventstore.Page{}, err
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			typ, entityID, planID string
			data                  []byte
			occurredAt            any
		)
		if err := rows.Scan(&typ, &entityID, &planID, &data, &occurredAt); err != nil {
			return eventstore.Page{}, err
		}
		var payload map[string]any
		_ = json.Unmarshal(data, &payload)
		events = append(events, event.Event{
			Type:     event.Type(typ),
			EntityID: entityID,
			PlanID:   planID,
			Data:     payload,
		})
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}

	return eventstore.Page{Events: events, Total: len(events), HasMore: hasMore}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}
