package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	DefaultQueueName           = "thought_jobs"
	DefaultDLQName             = "thought_jobs_dlq"
	DefaultExchangeName        = "thought_capture"
	DefaultDelayedExchangeName = "thought_capture_delayed"

	jobsRoutingKey = "jobs"
	dlqRoutingKey  = "dlq"

	// notReadyBackoff caps how long a consumer holds an early delivery before
	// requeueing it when the delayed exchange plugin is missing.
	notReadyBackoff = time.Second
)

// RabbitMQQueue implements JobQueue and DLQPurger using RabbitMQ
type RabbitMQQueue struct {
	conn       *amqp.Connection
	mu         sync.Mutex // guards channel, which is not safe for concurrent publishes
	channel    *amqp.Channel
	logger     *zap.Logger
	hasDelayed bool
	now        func() time.Time
}

var (
	_ JobQueue  = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
)

// NewRabbitMQQueue connects to RabbitMQ and declares the exchanges and queues
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &RabbitMQQueue{conn: conn, channel: ch, logger: logger, now: time.Now}
	if err := q.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}
	return q, nil
}

func (q *RabbitMQQueue) setup() error {
	// The delayed exchange needs the rabbitmq_delayed_message_exchange plugin.
	// A failed declare closes the channel, so reopen it and run without delays.
	err := q.channel.ExchangeDeclare(DefaultDelayedExchangeName, "x-delayed-message", true, false, false, false,
		amqp.Table{"x-delayed-type": "direct"})
	if err != nil {
		q.logger.Warn("delayed_exchange_unavailable", zap.Error(err))
		if q.channel.IsClosed() {
			ch, openErr := q.conn.Channel()
			if openErr != nil {
				return fmt.Errorf("failed to reopen channel after delayed exchange error: %w", openErr)
			}
			q.channel = ch
		}
	} else {
		q.hasDelayed = true
	}

	if err := q.channel.ExchangeDeclare(DefaultExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := q.channel.QueueDeclare(DefaultDLQName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := q.channel.QueueBind(DefaultDLQName, dlqRoutingKey, DefaultExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}
	_, err = q.channel.QueueDeclare(DefaultQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DefaultExchangeName,
		"x-dead-letter-routing-key": dlqRoutingKey,
	})
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := q.channel.QueueBind(DefaultQueueName, jobsRoutingKey, DefaultExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to exchange: %w", err)
	}
	if q.hasDelayed {
		if err := q.channel.QueueBind(DefaultQueueName, jobsRoutingKey, DefaultDelayedExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to delayed exchange: %w", err)
		}
	}
	return nil
}

// publishing builds the AMQP message for job and picks its exchange.
func publishing(job *Job, now time.Time, hasDelayed bool) (amqp.Publishing, string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, "", fmt.Errorf("failed to marshal job: %w", err)
	}
	p := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Type:         string(job.Type),
		Timestamp:    now,
	}
	if job.NotAfter != nil {
		if ttl := job.NotAfter.Sub(now); ttl > 0 {
			p.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}
	}
	exchange := DefaultExchangeName
	if job.NotBefore != nil && hasDelayed {
		if delay := job.NotBefore.Sub(now); delay > 0 {
			exchange = DefaultDelayedExchangeName
			p.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
		}
	}
	return p, exchange, nil
}

// Enqueue adds a job to the queue
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("refusing to enqueue: %w", err)
	}
	p, exchange, err := publishing(job, q.now(), q.hasDelayed)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.channel.PublishWithContext(ctx, exchange, jobsRoutingKey, false, false, p); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// Consume returns a channel of messages from the queue using async delivery
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}
	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := consumeCh.Consume(DefaultQueueName, "", false, false, false, false, nil)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					errChan <- errors.New("delivery channel closed")
					return
				}
				msg, requeueAfter, err := q.decode(d, consumeCh)
				if err != nil {
					_ = d.Nack(false, false)
					q.logger.Warn("job_rejected", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
					continue
				}
				if msg == nil {
					select {
					case <-ctx.Done():
						_ = d.Nack(false, true)
						return
					case <-time.After(requeueAfter):
						_ = d.Nack(false, true)
					}
					continue
				}
				select {
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// decode turns a delivery into a message. A nil message with no error means
// the job is not ready yet and should be requeued after the returned wait.
func (q *RabbitMQQueue) decode(d amqp.Delivery, acker Acknowledger) (*Message, time.Duration, error) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, 0, err
	}
	now := q.now()
	if job.ExpiredAt(now) {
		return nil, 0, fmt.Errorf("job %s expired at %s", job.ID, job.NotAfter.Format(time.RFC3339))
	}
	if !job.ReadyAt(now) {
		return nil, min(job.NotBefore.Sub(now), notReadyBackoff), nil
	}
	return &Message{Job: &job, DeliveryTag: d.DeliveryTag, Acker: acker}, 0, nil
}

// PurgeOlderThan drops dead-lettered jobs published more than retention ago
// and returns how many were dropped. Younger messages are returned to the DLQ.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("failed to open purge channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	info, err := ch.QueueDeclarePassive(DefaultDLQName, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	cutoff := q.now().Add(-retention)
	purged := 0
	var keep []uint64
	defer func() {
		for _, tag := range keep {
			_ = ch.Nack(tag, false, true)
		}
	}()

	for i := 0; i < info.Messages; i++ {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		d, ok, err := ch.Get(DefaultDLQName, false)
		if err != nil {
			return purged, fmt.Errorf("failed to read DLQ: %w", err)
		}
		if !ok {
			break
		}
		if !d.Timestamp.IsZero() && d.Timestamp.Before(cutoff) {
			if err := d.Ack(false); err != nil {
				return purged, fmt.Errorf("failed to ack purged message: %w", err)
			}
			purged++
			continue
		}
		keep = append(keep, d.DeliveryTag)
	}
	return purged, nil
}

// HealthCheck verifies the connection is open and the job queue exists
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open health check channel: %w", err)
	}
	defer func() { _ = ch.Close() }()
	if _, err := ch.QueueDeclarePassive(DefaultQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("job queue unavailable: %w", err)
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

var (
	_ JobQueue  = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
)
