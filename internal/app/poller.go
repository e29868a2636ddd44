package app

import (
	"context"
	"time"

	"github.com/hylla/ritning/internal/domain"
)

// Poller periodically reloads the board from the store so a shared database
// converges across processes. Each tick is a full last-write-wins
// replacement through Service.Refresh.
type Poller struct {
	service  *Service
	interval time.Duration
	onUpdate func(domain.Board)
}

// NewPoller constructs a new value for this package. onUpdate may be nil.
func NewPoller(service *Service, interval time.Duration, onUpdate func(domain.Board)) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{service: service, interval: interval, onUpdate: onUpdate}
}

// Run polls until the context is cancelled. Refresh errors are transient by
// assumption (the store may be mid-write from another process) and the next
// tick retries.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			board, err := p.service.Refresh(ctx)
			if err != nil {
				continue
			}
			if p.onUpdate != nil {
				p.onUpdate(board)
			}
		}
	}
}
