package queue

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ConnectOptions bounds the startup retry loop
type ConnectOptions struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConnectOptions tolerates RabbitMQ coming up a few minutes after the app
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		MaxAttempts:     10,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// ConnectWithRetry dials RabbitMQ with exponential backoff until it succeeds,
// attempts run out or ctx is cancelled
func ConnectWithRetry(ctx context.Context, amqpURL string, opts ConnectOptions, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialInterval
	b.MaxInterval = opts.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(opts.MaxAttempts-1)), ctx)

	attempt := 0
	q, err := backoff.RetryNotifyWithData[*RabbitMQQueue](func() (*RabbitMQQueue, error) {
		attempt++
		return NewRabbitMQQueue(amqpURL, logger)
	}, policy, func(err error, delay time.Duration) {
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", opts.MaxAttempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected_to_rabbitmq", zap.Int("attempts", attempt))
	return q, nil
}
