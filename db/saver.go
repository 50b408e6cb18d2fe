package db

import (
	"context"
	"sync"
	"time"

	"classroom-rollcall-go/models"
)

// AsyncSaver mirrors states to a Gateway from a single worker goroutine.
// Save never blocks; states saved while a write is pending replace it, so
// only the latest one is written.
type AsyncSaver struct {
	gw       *Gateway
	debounce time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	pending *models.AppState

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewAsyncSaver starts the worker. debounce delays each write so bursts of
// changes are written once; zero writes immediately.
func NewAsyncSaver(gw *Gateway, debounce time.Duration) *AsyncSaver {
	s := &AsyncSaver{
		gw:       gw,
		debounce: debounce,
		timeout:  5 * time.Second,
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Save queues state for writing. The caller must not modify state afterwards.
func (s *AsyncSaver) Save(state models.AppState) {
	s.mu.Lock()
	s.pending = &state
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *AsyncSaver) run() {
	defer close(s.done)
	for {
		select {
		case <-s.kick:
			if s.debounce > 0 {
				timer := time.NewTimer(s.debounce)
				select {
				case <-timer.C:
				case <-s.stop:
					timer.Stop()
					s.flush(context.Background())
					return
				}
			}
			s.flush(context.Background())
		case <-s.stop:
			s.flush(context.Background())
			return
		}
	}
}

func (s *AsyncSaver) flush(ctx context.Context) {
	s.mu.Lock()
	state := s.pending
	s.pending = nil
	s.mu.Unlock()

	if state == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	s.gw.Save(ctx, *state)
}

// Close writes any pending state and stops the worker. It returns early with
// the context error if ctx expires first.
func (s *AsyncSaver) Close(ctx context.Context) error {
	s.once.Do(func() { close(s.stop) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
