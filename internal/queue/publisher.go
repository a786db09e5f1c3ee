package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends events to a durable queue. A connection is dialed per
// publish; assignments are rare.
type Publisher struct {
	URL   string
	Queue string
	log   *logrus.Entry
}

func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{URL: url, Queue: queue, log: logrus.WithField("component", "queue")}
}

// Encode builds the persistent message for ev.
func Encode(ev SeatsAssignedEvent, at time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, errors.Wrap(err, "marshal event")
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    at.UTC(),
		Body:         body,
	}, nil
}

// PublishSeatsAssigned publishes ev. Errors are logged and returned so the
// caller can ignore them.
func (p *Publisher) PublishSeatsAssigned(ctx context.Context, ev SeatsAssignedEvent) error {
	err := p.publish(ctx, ev)
	if err != nil {
		p.log.WithError(err).WithField("committee_id", ev.CommitteeID).Warn("publish seats.assigned failed")
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, ev SeatsAssignedEvent) error {
	msg, err := Encode(ev, time.Now())
	if err != nil {
		return err
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return errors.Wrap(err, "dial broker")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "open channel")
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "declare queue")
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, msg); err != nil {
		return errors.Wrap(err, "publish")
	}
	return nil
}
