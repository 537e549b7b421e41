package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cryptodemo/backend/internal/events"
	"github.com/user/cryptodemo/backend/internal/models"
	"github.com/user/cryptodemo/backend/pkg/retrier"
)

type fakeWriter struct {
	block    bool
	failures int
	calls    int
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if w.calls <= w.failures {
		return errors.New("broker unavailable")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testEvent() events.TradeExecuted {
	return events.TradeExecuted{
		TradeID:        "t1",
		AccountID:      "demo_1",
		AccountKind:    models.AccountKindDemo,
		Type:           models.TradeTypeBuy,
		Cryptocurrency: "BTC",
		Amount:         decimal.RequireFromString("0.1"),
		Price:          decimal.NewFromInt(45000),
		Total:          decimal.NewFromInt(4500),
		BalanceAfter:   decimal.NewFromInt(5500),
		OccurredAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, time.Second)

	require.NoError(t, p.Publish(context.Background(), testEvent()))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "demo_1", string(msg.Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "t1", decoded["trade_id"])
	assert.Equal(t, "buy", decoded["type"])
	assert.Equal(t, "4500", decoded["total"])
}

func TestPublisher_RetriesTransientFailures(t *testing.T) {
	w := &fakeWriter{failures: 2}
	p := newPublisher(w, time.Second)
	p.retrier = retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(time.Millisecond))

	require.NoError(t, p.Publish(context.Background(), testEvent()))
	assert.Equal(t, 3, w.calls)
}

func TestPublisher_GivesUp(t *testing.T) {
	w := &fakeWriter{failures: 10}
	p := newPublisher(w, time.Second)
	p.retrier = retrier.New(retrier.WithMaxRetries(1), retrier.WithInitialInterval(time.Millisecond))

	err := p.Publish(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish trade t1")
	assert.Empty(t, w.messages)
}

func TestPublisher_UnreachableBrokerIsBounded(t *testing.T) {
	w := &fakeWriter{block: true}
	p := newPublisher(w, 50*time.Millisecond)

	start := time.Now()
	err := p.Publish(context.Background(), testEvent())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, w.messages)
}

func TestNewPublisher_DefaultTimeout(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "trade_executed", 0)
	defer p.Close()

	assert.Equal(t, DefaultPublishTimeout, p.timeout)
	assert.Equal(t, DefaultPublishTimeout, p.writer.(*kafka.Writer).WriteTimeout)
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newPublisher(w, time.Second).Close())
	assert.True(t, w.closed)
}
