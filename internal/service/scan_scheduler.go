package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/entangle"
)

// ScanSchedulerService runs the entanglement scanner on a fixed cadence
// and invalidates the scan cache after each run so recall picks up the
// fresh clusters.
type ScanSchedulerService struct {
	scanner  *entangle.Scanner
	cache    *entangle.Cache
	interval time.Duration
}

func NewScanSchedulerService(scanner *entangle.Scanner, cache *entangle.Cache, interval time.Duration) *ScanSchedulerService {
	return &ScanSchedulerService{scanner: scanner, cache: cache, interval: interval}
}

func (s *ScanSchedulerService) Start(ctx context.Context) {
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
			s.scanOnce(ctx)
		}
	}
}

func (s *ScanSchedulerService) scanOnce(ctx context.Context) {
	scan, err := s.scanner.Scan(ctx)
	if err != nil {
		log.Error("Entanglement scan failed", "err", err)
		return
	}
	if s.cache != nil {
		s.cache.Invalidate()
	}
	log.Info("Entanglement scan complete",
		"scanId", scan.ScanID,
		"items", scan.Stats.ItemsScanned,
		"resonances", scan.Stats.ResonancesFound,
		"clusters", scan.Stats.ClusterCount)
}
