package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

// ErrorClassification tells the executor whether a failed call may be retried
// and whether it counts against the breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor guards the calls made to one dependency (the bid store or the job
// broker) with that dependency's Policy and error classifier. Each operation
// gets its own breaker.
type Executor struct {
	dependency string
	policy     Policy
	classify   ErrorClassifier
	logger     *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(dependency string, policy Policy, classify ErrorClassifier) *Executor {
	if classify == nil {
		classify = neverRetry
	}
	return &Executor{
		dependency: dependency,
		policy:     policy.Or(StorePolicy()),
		classify:   classify,
		logger:     zap.L().With(zap.String("component", "resilience"), zap.String("dependency", dependency)),
		breakers:   make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

func (e *Executor) WithLogger(logger *zap.Logger) *Executor {
	if logger != nil {
		e.logger = logger.With(zap.String("component", "resilience"), zap.String("dependency", e.dependency))
	}
	return e
}

// Do runs call under the policy. A transient failure that outlives every
// attempt, or a call refused by an open breaker, is returned as
// domain.ErrTemporary; any other error is returned unchanged.
func (e *Executor) Do(ctx context.Context, operation string, call func(context.Context) error) error {
	if call == nil {
		return fmt.Errorf("resilience: %s call is nil", e.dependency)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}

	var err error
	if e.policy.Breaker.Enabled {
		_, err = e.breaker(op).Execute(func() (struct{}, error) {
			return struct{}{}, e.retry(ctx, op, call)
		})
	} else {
		err = e.retry(ctx, op, call)
	}
	return e.temporary(op, err)
}

func (e *Executor) retry(ctx context.Context, op string, call func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= e.policy.Attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		if err = call(ctx); err == nil {
			return nil
		}
		if !e.classify(err).Retryable {
			return err
		}
		if attempt == e.policy.Attempts {
			return fmt.Errorf("%s %s gave up after %d attempts: %w", e.dependency, op, attempt, err)
		}

		wait := e.policy.backoff(attempt)
		e.logger.Warn("transient failure, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func (e *Executor) temporary(op string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if IsCircuitOpen(err) || e.classify(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, e.dependency+" "+op, err)
	}
	return err
}

func (e *Executor) breaker(op string) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[op]; ok {
		return cb
	}

	b := e.policy.Breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        e.dependency + "." + op,
		MaxRequests: b.HalfOpenCalls,
		Timeout:     b.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < b.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !e.classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	e.breakers[op] = cb
	return cb
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsCanceled reports a caller-side cancellation, which is never retried and
// never held against the dependency.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func neverRetry(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
