package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func delivery(ack *ackRecorder, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: []byte(body)}
}

func TestProcessDelivery_AcksOnSuccess(t *testing.T) {
	var got string
	c := &Consumer{handler: func(ctx context.Context, body []byte) error {
		got = string(body)
		return nil
	}, logger: discard()}

	ack := &ackRecorder{}
	c.processDelivery(context.Background(), delivery(ack, "hello"), c.logger)

	assert.Equal(t, "hello", got)
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestProcessDelivery_RequeuesOnFailure(t *testing.T) {
	c := &Consumer{
		handler:   func(ctx context.Context, body []byte) error { return errors.New("boom") },
		baseDelay: time.Millisecond,
		logger:    discard(),
	}

	ack := &ackRecorder{}
	c.processDelivery(context.Background(), delivery(ack, "x"), c.logger)

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestProcessDelivery_DropsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		handler: func(ctx context.Context, body []byte) error {
			cancel()
			return errors.New("interrupted")
		},
		baseDelay: time.Hour,
		logger:    discard(),
	}

	ack := &ackRecorder{}
	c.processDelivery(ctx, delivery(ack, "x"), c.logger)

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestBackoff(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, 500*time.Millisecond, backoff(base, 1))
	assert.Equal(t, time.Second, backoff(base, 2))
	assert.Equal(t, 4*time.Second, backoff(base, 4))
	assert.Equal(t, maxBackoff, backoff(base, 20))
}

func TestAttemptFromHeaders(t *testing.T) {
	assert.Equal(t, 1, attemptFromHeaders(amqp.Delivery{}))
	assert.Equal(t, 1, attemptFromHeaders(amqp.Delivery{Headers: amqp.Table{"other": "x"}}))
	assert.Equal(t, 3, attemptFromHeaders(amqp.Delivery{Headers: amqp.Table{
		"x-death": []interface{}{amqp.Table{}, amqp.Table{}, amqp.Table{}},
	}}))
}

type publishCall struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	calls []publishCall
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.calls = append(f.calls, publishCall{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestPublishers(t *testing.T) {
	ch := &fakeChannel{}
	pub := &Publisher{channel: ch, exchange: "keyframes"}
	ctx := context.Background()

	require.NoError(t, pub.PublishJob(ctx, map[string]string{"recording_key": "demo.mov"}))
	require.NoError(t, NewStatusPublisher(pub).PublishStatus(ctx, []byte(`{"status":"COMPLETED"}`)))
	require.NoError(t, NewDLQPublisher(pub, "recording.process.dlq").PublishToDLQ(ctx, []byte("bad"), "unmarshal_error"))

	require.Len(t, ch.calls, 3)

	assert.Equal(t, "keyframes", ch.calls[0].exchange)
	assert.Equal(t, JobRoutingKey, ch.calls[0].key)
	var job map[string]string
	require.NoError(t, json.Unmarshal(ch.calls[0].msg.Body, &job))
	assert.Equal(t, "demo.mov", job["recording_key"])

	assert.Equal(t, StatusRoutingKey, ch.calls[1].key)
	assert.Equal(t, amqp.Persistent, ch.calls[1].msg.DeliveryMode)

	assert.Equal(t, "", ch.calls[2].exchange)
	assert.Equal(t, "recording.process.dlq", ch.calls[2].key)
	assert.Equal(t, "unmarshal_error", ch.calls[2].msg.Headers["x-dlq-reason"])
}
