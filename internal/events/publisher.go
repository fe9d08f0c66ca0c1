package events

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "venuebook.events"

type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %q", exchange)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         b,
	})
	return errors.Wrapf(err, "publish %s", key)
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
