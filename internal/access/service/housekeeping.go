package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/cache"
	"github.com/sproutcrm/tenantcore/internal/access/store"
)

// HousekeepingService periodically sweeps pending invites past their
// deadline into the expired state and checks cache backend health.
// Redemption never depends on the sweep; it exists so listings and
// stats reflect reality without waiting for the next redemption
// attempt to observe the deadline.
type HousekeepingService struct {
	Store       store.Store
	Credentials *cache.CredentialStore
	Logger      *slog.Logger
	Interval    time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, credentials *cache.CredentialStore, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:       store,
		Credentials: credentials,
		Logger:      logger,
		Interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs the sweep.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep performs the actual maintenance. Each task is independent,
// failures in one won't stop the others.
func (s *HousekeepingService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if n, err := s.Store.Invites().ExpirePendingInvites(ctx, time.Now().UTC()); err != nil {
		s.Logger.Error("failed to expire pending invites", "error", err)
	} else if n > 0 {
		s.Logger.Info("expired pending invites", "count", n)
	}

	if s.Credentials != nil {
		if err := s.Credentials.Ping(ctx); err != nil {
			s.Logger.Warn("credential store unreachable", "error", err)
			return
		}
		if n := s.Credentials.AuditTTLs(ctx); n > 0 {
			s.Logger.Warn("dropped credential keys without expiry", "count", n)
		}
	}
}
