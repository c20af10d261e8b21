package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const DefaultRoutingPrefix = "alerts"

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes alerts as persistent JSON messages to a topic
// exchange with routing key "<prefix>.<kind>".
type AMQPNotifier struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	prefix   string
}

// DialAMQP connects to the broker and declares the durable topic exchange.
func DialAMQP(url, exchange, routingPrefix string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	zap.L().Info("Alert publisher connected", zap.String("exchange", exchange))
	n := newAMQPNotifier(ch, exchange, routingPrefix)
	n.conn = conn
	return n, nil
}

func newAMQPNotifier(ch channel, exchange, routingPrefix string) *AMQPNotifier {
	if routingPrefix == "" {
		routingPrefix = DefaultRoutingPrefix
	}
	return &AMQPNotifier{ch: ch, exchange: exchange, prefix: routingPrefix}
}

func (n *AMQPNotifier) Notify(_ context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("alert serialization error: %w", err)
	}

	routingKey := n.prefix + "." + a.Kind

	n.mu.Lock()
	defer n.mu.Unlock()
	err = n.ch.Publish(
		n.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.New().String(),
			Timestamp:    a.RaisedAt,
			Headers: amqp.Table{
				"kind":      a.Kind,
				"user_id":   a.UserId,
				"reference": a.Reference,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("alert publish error: %w", err)
	}

	zap.L().Debug("Alert published", zap.String("routing_key", routingKey))
	return nil
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var closeErr error
	if n.ch != nil {
		if err := n.ch.Close(); err != nil {
			closeErr = fmt.Errorf("channel close error: %w", err)
		}
	}
	if n.conn != nil {
		if err := n.conn.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("connection close error: %w", err)
		}
	}
	return closeErr
}
