// Package memory holds the secondary memory layer: the audit event log,
// the scratchpad façade, the self-merging pattern store, the archive,
// and assembled context loading.
package memory

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// Event types emitted by the registries and the memory layer.
const (
	EventConversationRegistered = "graph.conversation.registered"
	EventDecisionInserted       = "graph.decision.inserted"
	EventDecisionUpdated        = "graph.decision.updated"
	EventDecisionValidated      = "graph.decision.validated"
	EventDecisionSuperseded     = "graph.decision.superseded"
	EventThreadUpserted         = "graph.thread.upserted"
	EventThreadResolved         = "graph.thread.resolved"
	EventLineageEdge            = "graph.lineage.edge"
	EventCompressionRegistered  = "graph.compression.registered"
	EventFlagPlanted            = "expedition.flag.planted"
	EventFlagCompiled           = "expedition.flag.compiled"
	EventPrimingUpserted        = "expedition.priming.upserted"
	EventPrimingDeactivated     = "expedition.priming.deactivated"
	EventPatternStored          = "memory.pattern.stored"
	EventPatternMerged          = "memory.pattern.merged"
	EventPatternMatched         = "memory.pattern.matched"
)

// Emitter appends audit events with a TTL. Emission is best-effort:
// failures are logged and never propagate to the mutation that caused
// the event.
type Emitter struct {
	store   registrystore.GraphStore
	ttlDays int
}

// NewEmitter creates an Emitter writing through the given store.
func NewEmitter(store registrystore.GraphStore, ttlDays int) *Emitter {
	if ttlDays <= 0 {
		ttlDays = 90
	}
	return &Emitter{store: store, ttlDays: ttlDays}
}

// Emit appends one event.
func (e *Emitter) Emit(ctx context.Context, eventType string, details map[string]any) {
	if e == nil || e.store == nil {
		return
	}
	now := time.Now().UTC()
	err := e.store.AppendEvent(ctx, &model.Event{
		EventType: eventType,
		Timestamp: now,
		Details:   details,
		ExpiresAt: now.AddDate(0, 0, e.ttlDays),
	})
	if err != nil {
		log.Warn("event emission failed", "type", eventType, "error", err)
	}
}

// List returns recent events, newest first.
func (e *Emitter) List(ctx context.Context, eventType string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return e.store.ListEvents(ctx, eventType, limit)
}
