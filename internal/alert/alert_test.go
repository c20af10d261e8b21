package alert

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange, key, msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPNotifier_Publishes(t *testing.T) {
	ch := &fakeChannel{}
	n := newAMQPNotifier(ch, "ops", "")

	a := New(KindRefundFailed, "alice", "refund:label:s1", decimal.RequireFromString("12.34"), "USD", "refund not applied", errors.New("db down"))
	require.NoError(t, n.Notify(context.Background(), a))

	require.Len(t, ch.sent, 1)
	got := ch.sent[0]
	assert.Equal(t, "ops", got.exchange)
	assert.Equal(t, "alerts.refund_failed", got.key)
	assert.Equal(t, uint8(amqp.Persistent), got.msg.DeliveryMode)
	assert.Equal(t, "application/json", got.msg.ContentType)

	var decoded Alert
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, "alice", decoded.UserId)
	assert.Equal(t, "db down", decoded.Error)
	assert.True(t, decoded.Amount.Equal(decimal.RequireFromString("12.34")))

	require.NoError(t, n.Close())
	assert.True(t, ch.closed)
}

func TestMulti_JoinsErrors(t *testing.T) {
	failing := newAMQPNotifier(&fakeChannel{err: errors.New("channel closed")}, "ops", "ops")
	ok := &fakeChannel{}

	m := Multi{LogNotifier{}, failing, newAMQPNotifier(ok, "ops", "ops")}
	err := m.Notify(context.Background(), New(KindReconcileFailed, "bob", "label:s2", decimal.Zero, "USD", "stuck", nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
	require.Len(t, ok.sent, 1)
	assert.Equal(t, "ops.reconcile_failed", ok.sent[0].key)
}
