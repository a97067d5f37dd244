package database

import (
	"sync"
	"time"

	"github.com/tieubaoca/lesson-rag/types"
	"go.uber.org/zap"
)

// circuitBreaker isolates the vector store from a failing backend. Every
// failed operation increments the failure count; once it reaches
// maxFailures the breaker opens and all further calls fail fast until a
// success resets it. There is no automatic recovery timer.
type circuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	failureCount int
	open         bool
	lastFailure  time.Time
	logger       *zap.Logger
}

func newCircuitBreaker(maxFailures int, logger *zap.Logger) *circuitBreaker {
	return &circuitBreaker{
		maxFailures: maxFailures,
		logger:      logger,
	}
}

// check returns ErrCircuitOpen while the breaker is open.
func (b *circuitBreaker) check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return types.ErrCircuitOpen
	}
	return nil
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.open = false
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailure = time.Now()
	if b.failureCount >= b.maxFailures && !b.open {
		b.open = true
		b.logger.Error("circuit breaker opened",
			zap.Int("failure_count", b.failureCount),
			zap.Int("max_failures", b.maxFailures))
	}
}
