package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/kirillkom/bid-reconciler/internal/infrastructure/resilience"
)

// Option configures how a repository reaches Postgres.
type Option func(*store)

// WithResilience replaces the store retry policy; zero fields keep the
// resilience.StorePolicy defaults.
func WithResilience(policy resilience.Policy, logger *zap.Logger) Option {
	return func(s *store) {
		s.exec = NewExecutor(policy, logger)
	}
}

// WithExecutor shares one executor, and so one set of breakers, between repositories.
func WithExecutor(exec *resilience.Executor) Option {
	return func(s *store) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// NewExecutor guards Postgres calls with the store policy and classifyStoreError.
func NewExecutor(policy resilience.Policy, logger *zap.Logger) *resilience.Executor {
	return resilience.NewExecutor("postgres", policy.Or(resilience.StorePolicy()), classifyStoreError).WithLogger(logger)
}

// store holds the executor a repository runs its idempotent calls through.
type store struct {
	exec *resilience.Executor
}

func newStore(opts []Option) store {
	s := store{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.exec == nil {
		s.exec = NewExecutor(resilience.Policy{}, nil)
	}
	return s
}

// do runs an idempotent call; transient failures that persist surface as
// domain.ErrTemporary.
func (s store) do(ctx context.Context, op string, call func(context.Context) error) error {
	return s.exec.Do(ctx, op, call)
}

// SQLSTATE classes and codes that describe the server or the session, not
// the statement.
var transientSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

var transientSQLClasses = []string{
	"08", // connection exception
	"53", // insufficient resources
}

func classifyStoreError(err error) resilience.ErrorClassification {
	if err == nil || resilience.IsCanceled(err) || errors.Is(err, sql.ErrNoRows) {
		return resilience.ErrorClassification{}
	}
	if isTransientStoreError(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	// Constraint violations and bad SQL are the caller's problem, not the store's.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func isTransientStoreError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if transientSQLStates[pgErr.Code] {
			return true
		}
		for _, class := range transientSQLClasses {
			if strings.HasPrefix(pgErr.Code, class) {
				return true
			}
		}
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
