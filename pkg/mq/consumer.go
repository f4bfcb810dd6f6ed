package mq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery. Returning an error nacks the message;
// wrap it with Permanent to drop it instead of requeueing.
type Handler func(ctx context.Context, routingKey string, body []byte) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
	keys     []string
}

func NewConsumer(url, exchange, queue string, keys []string) (*Consumer, error) {
	conn, ch, err := openChannel(url, exchange)
	if err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = closeAll(conn, ch)
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	for _, rk := range keys {
		if err := ch.QueueBind(q.Name, rk, exchange, false, nil); err != nil {
			_ = closeAll(conn, ch)
			return nil, fmt.Errorf("bind %s: %w", rk, err)
		}
	}
	if err := ch.Qos(10, 0, false); err != nil {
		_ = closeAll(conn, ch)
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{conn: conn, ch: ch, exchange: exchange, queue: q.Name, keys: keys}, nil
}

func (c *Consumer) Deliveries(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

// Run consumes until ctx is done or the channel closes. onError sees every
// handler failure before the message is nacked.
func (c *Consumer) Run(ctx context.Context, handle Handler, onError func(routingKey string, err error)) error {
	deliveries, err := c.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			Dispatch(ctx, d, handle, onError)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Dispatch runs handle for one message and acks or nacks it.
func Dispatch(ctx context.Context, d amqp.Delivery, handle Handler, onError func(string, error)) {
	settle(ctx, &d, d.RoutingKey, d.Body, handle, onError)
}

func settle(ctx context.Context, ack acknowledger, key string, body []byte, handle Handler, onError func(string, error)) {
	if err := handle(ctx, key, body); err != nil {
		if onError != nil {
			onError(key, err)
		}
		_ = ack.Nack(false, !IsPermanent(err))
		return
	}
	_ = ack.Ack(false)
}

func (c *Consumer) Close() error {
	return closeAll(c.conn, c.ch)
}
