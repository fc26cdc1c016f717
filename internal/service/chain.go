package service

import (
	"context"
	"sync"

	"nvdiff/internal/domain"
)

// Chain runs successive cycles, each comparing against the annotated output
// of the last committed one. Watch mode drives it.
type Chain struct {
	svc *ChangeService

	mu   sync.Mutex
	prev *domain.Snapshot
}

// NewChain starts a chain from prev, which may be nil for a first vintage
func (s *ChangeService) NewChain(prev *domain.Snapshot) *Chain {
	return &Chain{svc: s, prev: prev}
}

// Next compares cur against the previous snapshot. The chain advances only
// when the cycle commits.
func (c *Chain) Next(ctx context.Context, cur *domain.Snapshot) (*CycleReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	report, err := c.svc.RunCycle(ctx, c.prev, cur, nil)
	if err != nil {
		return report, err
	}
	c.prev = report.Output
	return report, nil
}

// Previous returns the snapshot the next cycle compares against
func (c *Chain) Previous() *domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prev
}
