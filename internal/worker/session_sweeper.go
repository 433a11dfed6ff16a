package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper drops expired sessions and reports how many were removed
type Sweeper interface {
	Sweep() int
}

// SessionSweeper periodically evicts idle upload sessions so their parsed
// files do not stay in memory after the TTL
type SessionSweeper struct {
	store    Sweeper
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	swept     int
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(store Sweeper, interval time.Duration, logger *zap.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Start starts the sweep loop
func (s *SessionSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("session sweeper is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("SessionSweeper started", zap.Duration("interval", s.interval))

	go s.sweepLoop(loopCtx, s.done)

	return nil
}

// Stop stops the sweep loop and waits for it to exit
func (s *SessionSweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("SessionSweeper stopped")
}

// Name returns the worker name for identification
func (s *SessionSweeper) Name() string {
	return "SessionSweeper"
}

// Swept returns the number of sessions evicted since start
func (s *SessionSweeper) Swept() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swept
}

func (s *SessionSweeper) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sweep loop context cancelled")
			return

		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *SessionSweeper) sweep() {
	n := s.store.Sweep()
	if n == 0 {
		return
	}

	s.mu.Lock()
	s.swept += n
	s.mu.Unlock()

	s.logger.Info("Expired sessions evicted", zap.Int("count", n))
}
