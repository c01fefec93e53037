// Package consumer drives the log-queue and control-queue subscriptions
// described in spec.md §4.5, fanning out validated records to the three
// sinks and reacting to live-reconfiguration signals.
package consumer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/acaciaworks/logship/internal/broker"
	"github.com/acaciaworks/logship/internal/config"
	"github.com/acaciaworks/logship/internal/errs"
	"github.com/acaciaworks/logship/internal/record"
)

// State is one of the Consumer lifecycle states from spec.md §4.5.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Reloading
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Reloading:
		return "reloading"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ConsoleSink, DatabaseSink, FileSink are the minimal surfaces the
// Consumer depends on, so tests can substitute fakes per spec.md's
// "each sink's error is isolated" requirement without a live broker or
// database.
type ConsoleSink interface {
	Write(cfg config.ConsoleConfig, r *record.Record)
}

type DatabaseSink interface {
	Write(ctx context.Context, r *record.Record)
}

type FileSink interface {
	Write(r *record.Record)
	Close() error
}

// controlMessage mirrors the payload published on the control queue.
type controlMessage struct {
	Code   int             `json:"code"`
	Detail string          `json:"detail"`
	Data   json.RawMessage `json:"data"`
}

const reloadCode = 100

func isReloadSignal(m controlMessage) bool {
	return m.Code == reloadCode || m.Detail == "Update config"
}

// Consumer owns the broker subscriptions and dispatches to sinks. Its
// lifecycle follows the state machine in spec.md §4.5.
type Consumer struct {
	manager *config.Manager
	log     zerolog.Logger

	console  ConsoleSink
	database DatabaseSink
	file     FileSink

	mu    sync.Mutex
	state State

	conn          *broker.Connection
	cancelSub     context.CancelFunc
	loopDone      chan struct{}
	pendingReload bool
}

// New constructs a Consumer. The sinks are supplied by the caller
// (the serve command) since their lifetime spans reconfiguration differently
// from the Consumer's own broker connection.
func New(manager *config.Manager, console ConsoleSink, database DatabaseSink, file FileSink, log zerolog.Logger) *Consumer {
	return &Consumer{
		manager:  manager,
		log:      log,
		console:  console,
		database: database,
		file:     file,
		state:    Stopped,
	}
}

func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Start transitions Stopped → Starting → Running, per spec.md §4.5. On
// any error it tears down partial state and returns a StartError.
func (c *Consumer) Start(ctx context.Context) error {
	c.setState(Starting)

	cfg := c.manager.Get()
	conn, err := broker.Dial(cfg.RabbitMQ, c.log)
	if err != nil {
		c.setState(Stopped)
		return &errs.StartError{Component: "consumer", Cause: err}
	}

	// Each run gets a fresh, unique consumer tag so reconnects and
	// reloads never collide with a still-draining prior subscription on
	// the broker side.
	runID := uuid.NewString()

	subCtx, cancel := context.WithCancel(ctx)
	logDeliveries, err := conn.Consume(subCtx, cfg.RabbitMQ.Queue, "logship-log-"+runID)
	if err != nil {
		cancel()
		conn.Close()
		c.setState(Stopped)
		return &errs.StartError{Component: "consumer", Cause: err}
	}
	controlDeliveries, err := conn.Consume(subCtx, broker.ControlQueueName, "logship-control-"+runID)
	if err != nil {
		cancel()
		conn.Close()
		c.setState(Stopped)
		return &errs.StartError{Component: "consumer", Cause: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.cancelSub = cancel
	c.loopDone = make(chan struct{})
	c.mu.Unlock()

	c.setState(Running)
	go func() {
		c.loop(subCtx, logDeliveries, controlDeliveries)

		c.mu.Lock()
		reload := c.pendingReload
		c.pendingReload = false
		c.mu.Unlock()

		if reload {
			if err := c.Reload(ctx); err != nil {
				c.log.Error().Err(err).Msg("consumer: reload failed")
			}
		}
	}()
	return nil
}

// loop dispatches deliveries until ctx is canceled (deliberate
// teardown) or a reload signal is observed. Broker reconnects are
// transparent to loop: broker.Connection.Consume re-attaches behind
// the scenes, so logDeliveries/controlDeliveries only close for real
// on ctx cancellation.
func (c *Consumer) loop(ctx context.Context, logDeliveries, controlDeliveries <-chan amqp.Delivery) {
	defer close(c.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-logDeliveries:
			if !ok {
				return
			}
			c.handleLog(d)
		case d, ok := <-controlDeliveries:
			if !ok {
				return
			}
			if c.handleControl(d) {
				c.mu.Lock()
				c.pendingReload = true
				c.mu.Unlock()
				return
			}
		}
	}
}

func (c *Consumer) handleLog(d amqp.Delivery) {
	r, invalid := record.Validate(d.Body)
	if invalid != nil {
		c.log.Warn().Err(invalid).Msg("consumer: invalid record, dropping")
		d.Ack(false)
		return
	}

	cfg := c.manager.Get()

	if cfg.Console.Enabled && c.console != nil {
		c.console.Write(cfg.Console, r)
	}
	if cfg.TimescaleDB.Enabled && c.database != nil {
		c.database.Write(context.Background(), r)
	}
	if cfg.Files.Enabled && c.file != nil {
		c.file.Write(r)
	}

	d.Ack(false)
}

// handleControl returns true if a reload signal was observed and the
// consume loop should stop.
func (c *Consumer) handleControl(d amqp.Delivery) bool {
	var msg controlMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.log.Warn().Err(err).Msg("consumer: invalid control message, dropping")
		d.Ack(false)
		return false
	}
	d.Ack(false)

	if !isReloadSignal(msg) {
		c.log.Info().Int("code", msg.Code).Msg("consumer: control message ignored")
		return false
	}

	if len(msg.Data) > 0 {
		var next config.ServerConfig
		if err := json.Unmarshal(msg.Data, &next); err != nil {
			c.log.Error().Err(err).Msg("consumer: reload payload did not decode, keeping current config")
			return true
		}
		if err := c.manager.Apply(&next); err != nil {
			c.log.Error().Err(err).Msg("consumer: reload payload failed validation, keeping current config")
		}
	}
	return true
}

// Reload performs the Running → Reloading → Starting transition: cancel
// subscriptions, drain in-flight work, close the File Sink (footer
// phase awaited), then restart.
func (c *Consumer) Reload(ctx context.Context) error {
	c.setState(Reloading)
	c.teardown()

	if c.file != nil {
		if err := c.file.Close(); err != nil {
			c.log.Warn().Err(err).Msg("consumer: file sink close during reload reported an error")
		}
	}

	return c.Start(ctx)
}

// Stop performs the teardown shared by Reloading and Stopping, without
// restarting. Errors during teardown are logged, never raised, per
// spec.md §4.5.
func (c *Consumer) Stop() {
	c.setState(Stopping)
	c.teardown()

	if c.file != nil {
		if err := c.file.Close(); err != nil {
			c.log.Warn().Err(err).Msg("consumer: file sink close during shutdown reported an error")
		}
	}
	c.setState(Stopped)
}

func (c *Consumer) teardown() {
	c.mu.Lock()
	cancel := c.cancelSub
	conn := c.conn
	done := c.loopDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log.Warn().Err(err).Msg("consumer: broker close reported an error")
		}
	}
}
