package queue

import (
	"context"
	"time"
)

// JobQueue is the interface for job queues
type JobQueue interface {
	// Enqueue publishes a job, delaying delivery until NotBefore when set.
	Enqueue(ctx context.Context, job *Job) error

	// Consume delivers messages until ctx is cancelled. Each message must be
	// acked or nacked. prefetchCount bounds unacknowledged messages per consumer.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	Close() error

	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered messages older than retention.
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}

// Acknowledger settles a delivery. *amqp.Channel satisfies it.
type Acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple bool, requeue bool) error
}
