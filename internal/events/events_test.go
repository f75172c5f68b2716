package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gooms-backend/internal/config"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestNew(t *testing.T) {
	ev := New(TypeSaleRecorded, "sale:4", map[string]int{"sale_id": 4})
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, TypeSaleRecorded, ev.Type)
	assert.JSONEq(t, `{"sale_id":4}`, string(ev.Data))
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w, topic: "gooms.events"}

	ev := New(TypeBatchCompleted, "batch:9", map[string]string{"batch_number": "B-20250301-9"})
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "batch:9", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, TypeBatchCompleted, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
}

func TestEmit_LogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := &KafkaPublisher{w: &fakeWriter{err: errors.New("broker down")}, topic: "t"}

	Emit(context.Background(), p, zap.New(core), New(TypeLowStock, "product:1", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "publish event failed", logs.All()[0].Message)
}

func TestMemoryPublisher(t *testing.T) {
	m := &MemoryPublisher{}
	Emit(context.Background(), m, zap.NewNop(), New(TypeSaleRecorded, "a", nil))
	Emit(context.Background(), m, zap.NewNop(), New(TypeLowStock, "b", nil))
	assert.Equal(t, []string{TypeSaleRecorded, TypeLowStock}, m.Types())
	assert.Len(t, m.Events(), 2)
}

func TestFromConfig_Disabled(t *testing.T) {
	pub := FromConfig(config.KafkaConfig{Enabled: false}, zap.NewNop())
	assert.IsType(t, NoopPublisher{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), New("x", "", nil)))
}
