package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	registryvector "github.com/forgeos/graph-service/internal/registry/vector"
)

// mirrorBatch bounds one upsert round against the secondary index.
const mirrorBatch = 256

// VectorMirrorService copies decision and thread embeddings into the
// optional secondary vector index. Upserts are idempotent, so the
// mirror simply re-pushes everything each round.
type VectorMirrorService struct {
	store    registrystore.GraphStore
	index    registryvector.Index
	interval time.Duration
}

func NewVectorMirrorService(store registrystore.GraphStore, index registryvector.Index, interval time.Duration) *VectorMirrorService {
	return &VectorMirrorService{store: store, index: index, interval: interval}
}

func (s *VectorMirrorService) Start(ctx context.Context) {
	if s == nil || s.index == nil || !s.index.IsEnabled() || s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mirrorOnce(ctx)
		}
	}
}

func (s *VectorMirrorService) mirrorOnce(ctx context.Context) {
	pushed := 0

	decisions, err := s.store.ListDecisions(ctx, registrystore.DecisionFilter{Status: model.DecisionActive})
	if err != nil {
		log.Error("Vector mirror decision list failed", "err", err)
		return
	}
	var batch []registryvector.UpsertRequest
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.index.Upsert(ctx, batch); err != nil {
			log.Error("Vector mirror upsert failed", "err", err)
		} else {
			pushed += len(batch)
		}
		batch = batch[:0]
	}
	for _, d := range decisions {
		if len(d.Embedding) == 0 {
			continue
		}
		batch = append(batch, registryvector.UpsertRequest{
			ID:         d.UUID,
			Collection: "decision_registry",
			Project:    d.Project,
			Embedding:  d.Embedding,
		})
		if len(batch) >= mirrorBatch {
			flush()
		}
	}
	flush()

	threads, err := s.store.ListThreads(ctx, registrystore.ThreadFilter{StatusNot: model.ThreadResolved})
	if err != nil {
		log.Error("Vector mirror thread list failed", "err", err)
		return
	}
	for _, t := range threads {
		if len(t.Embedding) == 0 {
			continue
		}
		batch = append(batch, registryvector.UpsertRequest{
			ID:         t.UUID,
			Collection: "thread_registry",
			Project:    t.Project,
			Embedding:  t.Embedding,
		})
		if len(batch) >= mirrorBatch {
			flush()
		}
	}
	flush()

	if pushed > 0 {
		log.Debug("Vector mirror round complete", "embeddings", pushed)
	}
}
