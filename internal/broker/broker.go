// Package broker wraps the AMQP 0-9-1 connection used for both the log
// queue and the control queue, per spec.md §4.5. It auto-reconnects on
// transport failure and re-declares/re-attaches on reconnect.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/acaciaworks/logship/internal/config"
	"github.com/acaciaworks/logship/internal/errs"
)

// ControlQueueName is the fixed name of the control channel queue, per
// spec.md §4.5.
const ControlQueueName = "service_queue"

// queueTTLMillis is the per-message TTL applied to both queues, per
// spec.md §4.5.
const queueTTLMillis = 30000

// defaultPrefetch is the QoS/prefetch count applied for backpressure,
// per spec.md §5.
const defaultPrefetch = 10

// URL builds the AMQP connection string, per spec.md §4.5.
func URL(cfg config.RabbitMQConfig) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.User, cfg.Password, cfg.Host, cfg.Port)
}

// subscription is one Consume() call's registration. forward owns its
// out channel for the subscription's whole lifetime, re-attaching the
// underlying amqp delivery channel across reconnects so callers never
// see a spurious close.
type subscription struct {
	queue string
	tag   string
	out   chan amqp.Delivery
}

// amqpChannel is the minimal *amqp.Channel surface Connection depends
// on. Grounded on jra3-linear-fuse/internal/sync/worker.go's APIClient
// pattern: define the narrow interface the component needs, so tests
// substitute a fake channel instead of requiring a live broker to
// exercise reconnect/re-attach behavior.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Connection owns a reconnecting AMQP connection and channel. Callers
// obtain Deliveries via Consume, which re-attaches automatically after
// a reconnect.
type Connection struct {
	cfg config.RabbitMQConfig
	log zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   amqpChannel

	// generation is closed and replaced every time connect() succeeds,
	// so a subscription waiting to re-attach can block on it instead of
	// polling for a new channel.
	generation chan struct{}

	closed bool
}

// Dial opens the initial connection and channel, sets the prefetch
// count, and declares both queues.
func Dial(cfg config.RabbitMQConfig, log zerolog.Logger) (*Connection, error) {
	c := &Connection{cfg: cfg, log: log}
	if err := c.connect(); err != nil {
		return nil, &errs.ConnectionError{Target: cfg.Host, Cause: err}
	}
	return c, nil
}

func (c *Connection) connect() error {
	conn, err := amqp.Dial(URL(c.cfg))
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(defaultPrefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("set QoS: %w", err)
	}

	if _, err := declareQueue(ch, c.cfg.Queue); err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	if _, err := declareQueue(ch, ControlQueueName); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	prevGeneration := c.generation
	c.generation = make(chan struct{})
	c.conn = conn
	c.ch = ch
	c.mu.Unlock()

	if prevGeneration != nil {
		close(prevGeneration)
	}

	go c.watchClose(conn.NotifyClose(make(chan *amqp.Error, 1)))
	return nil
}

// declareQueue declares a durable, non-auto-deleting queue with the
// 30,000ms message TTL shared by both the log and control queues, per
// spec.md §4.5.
func declareQueue(ch amqpChannel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-message-ttl": int32(queueTTLMillis),
	})
}

// watchClose blocks until the connection reports a close, then
// reconnects with backoff unless Close was called deliberately.
func (c *Connection) watchClose(notify chan *amqp.Error) {
	amqpErr, ok := <-notify
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	if amqpErr != nil {
		c.log.Warn().Err(amqpErr).Msg("broker: connection closed, reconnecting")
	}

	backoff := time.Second
	for {
		if err := c.connect(); err == nil {
			c.log.Info().Msg("broker: reconnected")
			return
		}
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}

		c.mu.Lock()
		closed = c.closed
		c.mu.Unlock()
		if closed {
			return
		}
	}
}

// Consume starts delivering messages from queue with manual ack. The
// returned channel stays live across reconnects: when the broker
// connection drops, Consume re-subscribes on the new channel as soon
// as connect() succeeds again, so callers never need to notice a
// transport failure or re-invoke Consume themselves.
func (c *Connection) Consume(ctx context.Context, queue, consumerTag string) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return nil, fmt.Errorf("broker: channel not available")
	}

	src, err := ch.ConsumeWithContext(ctx, queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, err
	}

	sub := &subscription{queue: queue, tag: consumerTag, out: make(chan amqp.Delivery)}
	go c.forward(ctx, sub, src)
	return sub.out, nil
}

// forward relays deliveries from the current underlying amqp channel
// into the subscription's stable output channel. If the underlying
// channel closes because the broker connection dropped (not because
// ctx was canceled), it waits for the next successful reconnect and
// re-subscribes rather than giving up.
func (c *Connection) forward(ctx context.Context, sub *subscription, src <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-src:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				next, err := c.reattach(ctx, sub)
				if err != nil {
					return
				}
				src = next
				continue
			}
			select {
			case sub.out <- d:
			case <-ctx.Done():
				return
			}
		}
	}
}

// reattach blocks until the connection has reconnected, then
// re-declares the subscription on the new channel. It keeps retrying
// across reconnect attempts until it succeeds or the connection is
// closed for good.
func (c *Connection) reattach(ctx context.Context, sub *subscription) (<-chan amqp.Delivery, error) {
	for {
		c.mu.Lock()
		closed := c.closed
		gen := c.generation
		c.mu.Unlock()
		if closed {
			return nil, fmt.Errorf("broker: connection closed")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-gen:
		}

		c.mu.Lock()
		ch := c.ch
		closed = c.closed
		c.mu.Unlock()
		if closed {
			return nil, fmt.Errorf("broker: connection closed")
		}
		if ch == nil {
			continue
		}

		src, err := ch.ConsumeWithContext(ctx, sub.queue, sub.tag, false, false, false, false, nil)
		if err != nil {
			c.log.Warn().Err(err).Str("queue", sub.queue).Msg("broker: re-subscribe after reconnect failed, retrying on next reconnect")
			continue
		}
		c.log.Info().Str("queue", sub.queue).Msg("broker: subscription re-attached after reconnect")
		return src, nil
	}
}

// Close shuts down the channel and connection, suppressing the
// reconnect loop.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.closed = true
	ch, conn := c.ch, c.conn
	c.mu.Unlock()

	var firstErr error
	if ch != nil {
		if err := ch.Close(); err != nil {
			firstErr = err
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
