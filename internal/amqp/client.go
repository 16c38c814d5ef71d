package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	publishRetries = 3
)

var (
	ErrCircuitOpen   = errors.New("circuit breaker is open")
	ErrNotConnected  = errors.New("amqp channel not open")
	errChannelClosed = errors.New("message channel closed")
)

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func setup(channel *amqp091.Channel, exchangeName, queueName string) error {
	err := channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name on a direct exchange
	if err := channel.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *Client) getLastFailure() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFailure
}

// isCircuitOpen reports whether publishing is currently refused. An open
// circuit moves to half-open once openTimeout has elapsed.
func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	if time.Since(c.getLastFailure()) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	n := atomic.AddInt64(&c.failureCount, 1)
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns the reconnect delay for attempt: 1s doubling,
// capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	const maxDelay = 30 * time.Second
	if attempt > 5 {
		return maxDelay
	}
	d := time.Second << uint(attempt)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, ErrNotConnected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) reconnect(attempt int) {
	time.Sleep(exponentialBackoff(attempt))
	c.mu.Lock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.channel = nil, nil
	c.mu.Unlock()
	if err := c.connect(); err != nil {
		slog.Warn("AMQP reconnect failed", "attempt", attempt, "error", err)
	}
}

func (c *Client) publishOnce(ctx context.Context, body []byte) error {
	channel := c.currentChannel()
	if channel == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// PublishTransactionEvent publishes ev, retrying connection errors with
// backoff. It fails fast while the circuit breaker is open.
func (c *Client) PublishTransactionEvent(ctx context.Context, ev *TransactionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", ev.Kind.RoutingKey(), ErrCircuitOpen)
	}

	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = retry.Do(
		func() error { return c.publishOnce(ctx, body) },
		retry.Context(ctx),
		retry.Attempts(publishRetries),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isConnectionError),
		retry.OnRetry(func(n uint, err error) {
			slog.WarnContext(ctx, "Retrying AMQP publish", "attempt", n+1, "error", err)
			c.reconnect(int(n))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.InfoContext(ctx, "Published transaction event",
		"event_id", ev.EventID,
		"kind", ev.Kind,
		"transaction_id", ev.TransactionID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// EventHandler applies one consumed event.
type EventHandler func(ctx context.Context, ev *TransactionEvent) error

// ConsumeTransactionEvents delivers events to handler until ctx is done.
// Successful events are acked, failed ones are requeued and undecodable
// bodies are dropped.
func (c *Client) ConsumeTransactionEvents(ctx context.Context, prefetch int, handler EventHandler) error {
	channel := c.currentChannel()
	if channel == nil {
		return ErrNotConnected
	}
	if prefetch > 0 {
		if err := channel.Qos(prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
	}
	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming transaction events", "queue", c.queueName)
	return consume(ctx, msgs, handler)
}

// acknowledger is the subset of amqp091.Delivery used by consume.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func consume(ctx context.Context, msgs <-chan amqp091.Delivery, handler EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errChannelClosed
			}
			handleDelivery(ctx, delivery.Body, &delivery, handler)
		}
	}
}

func handleDelivery(ctx context.Context, body []byte, ack acknowledger, handler EventHandler) {
	ev, err := TransactionEventFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		ack.Nack(false, false)
		return
	}
	if err := handler(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to handle event",
			"error", err,
			"event_id", ev.EventID,
			"kind", ev.Kind)
		ack.Nack(false, true)
		return
	}
	ack.Ack(false)
	slog.DebugContext(ctx, "Processed transaction event", "event_id", ev.EventID, "kind", ev.Kind)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
