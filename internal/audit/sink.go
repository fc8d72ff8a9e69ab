// Package audit provides the append-only audit trail the orchestrator and
// capabilities write to at each transition.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelane/orchestrator/internal/domain"
)

// Sink is the append-only event log contract. A failed write is a
// reportable condition, never silently dropped, but it must not block the
// interaction that produced it.
type Sink interface {
	Write(ctx context.Context, e domain.AuditEvent) error
}

// EventStore is the slice of the record store the sink needs.
type EventStore interface {
	AppendAuditEvent(ctx context.Context, e *domain.AuditEvent) error
}

// StoreSink writes audit events to the record store.
type StoreSink struct {
	store EventStore
	log   zerolog.Logger
}

// NewStoreSink creates a store-backed sink.
func NewStoreSink(store EventStore, log zerolog.Logger) *StoreSink {
	return &StoreSink{store: store, log: log.With().Str("component", "audit").Logger()}
}

// Write appends one event. Missing ids and timestamps are filled in.
func (s *StoreSink) Write(ctx context.Context, e domain.AuditEvent) error {
	if e.ID == "" {
		e.ID = "aud_" + uuid.New().String()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := s.store.AppendAuditEvent(ctx, &e); err != nil {
		s.log.Error().Err(err).
			Str("workspace_id", e.WorkspaceID).
			Str("action", e.Action).
			Msg("audit write failed")
		return fmt.Errorf("audit write failed: %w", err)
	}
	return nil
}

// Metadata marshals a metadata map for an audit event. Marshal failures
// degrade to an error note rather than dropping the event.
func Metadata(m map[string]any) json.RawMessage {
	b, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage(`{"error":"metadata marshal failed"}`)
	}
	return b
}
