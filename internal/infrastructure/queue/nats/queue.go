package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/infrastructure/resilience"
)

// QueueGroup spreads reconcile jobs across worker replicas.
const QueueGroup = "reconcilers"

type Queue struct {
	conn         *nats.Conn
	subject      string
	executor     *resilience.Executor
	drainTimeout time.Duration
	logger       *zap.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	// DrainTimeout bounds how long shutdown waits for in-flight jobs.
	DrainTimeout time.Duration
	// Publish overrides the broker retry policy; zero fields keep its defaults.
	Publish resilience.Policy
	Logger  *zap.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	drainTimeout := options.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Minute
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.With(zap.String("component", "nats"), zap.String("subject", subject))

	conn, err := nats.Connect(
		url,
		nats.Name("bid-reconciler"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:         conn,
		subject:      subject,
		executor:     newPublishExecutor(options.Publish).WithLogger(logger),
		drainTimeout: drainTimeout,
		logger:       logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishReconcileRequested(ctx context.Context, job domain.ReconcileJob) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}

	return q.executor.Do(ctx, "publish", func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	})
}

// SubscribeReconcileRequested blocks until ctx is done, then drains the
// subscription: jobs already delivered still run to completion and the call
// returns once the last of them has finished or the drain timeout passed.
// Handlers never see ctx cancellation; callers bound each job themselves.
func (q *Queue) SubscribeReconcileRequested(ctx context.Context, handler func(context.Context, domain.ReconcileJob) error) error {
	jobCtx := context.WithoutCancel(ctx)
	sub, err := q.conn.QueueSubscribe(q.subject, QueueGroup, func(msg *nats.Msg) {
		q.handleMessage(jobCtx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	q.logger.Info("draining reconcile subscription", zap.Duration("timeout", q.drainTimeout))
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if !waitDrained(sub.IsValid, q.drainTimeout, drainPollInterval) {
		return fmt.Errorf("nats drain subscription: jobs still running after %s", q.drainTimeout)
	}
	return nil
}

func (q *Queue) handleMessage(ctx context.Context, data []byte, handler func(context.Context, domain.ReconcileJob) error) {
	job, err := decodeJob(data)
	if err != nil {
		q.logger.Error("drop malformed reconcile job", zap.Error(err), zap.ByteString("payload", data))
		return
	}
	if err := handler(ctx, job); err != nil {
		q.logger.Error("reconcile job failed",
			zap.String("tender_id", job.TenderID),
			zap.String("bid_id", job.BidID),
			zap.Error(err),
		)
	}
}

const drainPollInterval = 50 * time.Millisecond

// waitDrained polls until active reports false, which a nats subscription
// does once Drain has delivered its last message and the handler returned.
func waitDrained(active func() bool, timeout, every time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for active() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(every)
	}
	return true
}

func encodeJob(job domain.ReconcileJob) ([]byte, error) {
	if job.TenderID == "" || job.BidID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode reconcile job", errors.New("tender id and bid id are required"))
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal reconcile job: %w", err)
	}
	return payload, nil
}

func decodeJob(data []byte) (domain.ReconcileJob, error) {
	var job domain.ReconcileJob
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.ReconcileJob{}, fmt.Errorf("unmarshal reconcile job: %w", err)
	}
	if job.TenderID == "" || job.BidID == "" {
		return domain.ReconcileJob{}, errors.New("reconcile job is missing tender id or bid id")
	}
	return job, nil
}
