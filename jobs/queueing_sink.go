package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/rangoon-shop/rangoon-admin/internal/audit"
)

// Enqueuer hands an audit entry to the background queue.
type Enqueuer interface {
	EnqueueAuditFlush(ctx context.Context, e audit.Entry) error
}

// QueueingSink appends inline and, when that fails, queues the entry for the
// worker instead of failing the caller. The returned entry is the one queued.
// While the breaker is open the primary sink is skipped entirely.
type QueueingSink struct {
	primary audit.Sink
	queue   Enqueuer
	breaker *gobreaker.CircuitBreaker[audit.Entry]
	logger  *slog.Logger
}

// BreakerSettings tunes when inline appends stop being attempted.
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker. Defaults to 5.
	ConsecutiveFailures uint32
	// Cooldown is how long the breaker stays open. Defaults to 30s.
	Cooldown time.Duration
}

// NewQueueingSink wraps primary.
func NewQueueingSink(primary audit.Sink, queue Enqueuer, settings BreakerSettings, logger *slog.Logger) *QueueingSink {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[audit.Entry](gobreaker.Settings{
		Name:        "audit-sink",
		MaxRequests: 1,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		// A caller giving up is not a sink failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("audit breaker state change", slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return &QueueingSink{primary: primary, queue: queue, breaker: breaker, logger: logger}
}

func (s *QueueingSink) Append(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	stored, err := s.breaker.Execute(func() (audit.Entry, error) {
		return s.primary.Append(ctx, e)
	})
	if err == nil {
		return stored, nil
	}
	if qerr := s.queue.EnqueueAuditFlush(ctx, e); qerr != nil {
		return audit.Entry{}, errors.Join(err, qerr)
	}
	s.logger.Warn("audit append deferred to worker", slog.String("entry", e.ID), slog.Any("error", err))
	return e, nil
}

// State reports the breaker state for health output.
func (s *QueueingSink) State() string {
	return s.breaker.State().String()
}
