package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/user/cryptodemo/backend/internal/events"
	"github.com/user/cryptodemo/backend/pkg/retrier"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes trade events to a Kafka topic, keyed by account id so one
// account's trades stay ordered within a partition.
type Publisher struct {
	writer  messageWriter
	retrier *retrier.Retrier
	timeout time.Duration
}

// DefaultPublishTimeout bounds one Publish call, retries included.
const DefaultPublishTimeout = 2 * time.Second

// NewPublisher creates a publisher for topic on brokers. Each Publish gives up
// after timeout; a non-positive timeout uses DefaultPublishTimeout.
func NewPublisher(brokers []string, topic string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: timeout,
		RequiredAcks: kafka.RequireOne,
	}, timeout)
}

func newPublisher(w messageWriter, timeout time.Duration) *Publisher {
	return &Publisher{
		writer:  w,
		retrier: retrier.New(retrier.WithMaxRetries(2)),
		timeout: timeout,
	}
}

func (p *Publisher) Publish(ctx context.Context, event events.TradeExecuted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encode trade event")
	}

	msg := kafka.Message{
		Key:   []byte(event.AccountID),
		Value: data,
		Time:  event.OccurredAt,
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err = p.retrier.Do(ctx, func(ctx context.Context) error {
		return p.writer.WriteMessages(ctx, msg)
	})
	return errors.Wrapf(err, "publish trade %s", event.TradeID)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ events.Publisher = (*Publisher)(nil)
