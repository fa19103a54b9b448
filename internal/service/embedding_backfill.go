// Package service holds the background workers: thread embedding
// backfill, periodic entanglement scans, and the secondary vector
// index mirror.
package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/entangle"
)

// EmbeddingBackfillService periodically embeds thread titles stored
// without an embedding, so vector search covers threads created while
// the embedder was unavailable.
type EmbeddingBackfillService struct {
	scanner  *entangle.Scanner
	interval time.Duration
}

func NewEmbeddingBackfillService(scanner *entangle.Scanner, interval time.Duration) *EmbeddingBackfillService {
	return &EmbeddingBackfillService{scanner: scanner, interval: interval}
}

func (s *EmbeddingBackfillService) Start(ctx context.Context) {
	if s == nil || s.scanner == nil || s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.scanner.BackfillThreadEmbeddings(ctx); err != nil {
				log.Error("Thread embedding backfill failed", "err", err)
			}
		}
	}
}
