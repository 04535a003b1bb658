package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestPolicyBackoff(t *testing.T) {
	p := jobs.Policy{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDecode(t *testing.T) {
	job, err := jobs.Decode[jobs.TurnJob]([]byte(`{"thread_id":"t1","content":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "t1", job.ThreadID)
	assert.Equal(t, "hi", job.Content)

	_, err = jobs.Decode[jobs.TurnJob]([]byte(`{`))
	assert.Error(t, err)
}

type failure struct {
	topic   string
	payload []byte
	err     error
}

func startQueue(t *testing.T, onFailure jobs.FailureFunc, register func(q *jobs.WatermillQueue)) *jobs.WatermillQueue {
	t.Helper()
	policy := jobs.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
		SoftTimeout:    time.Second,
		HardTimeout:    time.Second,
	}
	q, err := jobs.NewWatermillQueue(policy, logger.NewNopLogger(), onFailure)
	require.NoError(t, err)
	register(q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = q.Close()
		<-done
	})

	select {
	case <-q.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	return q
}

func TestWatermillQueueRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	handled := make(chan jobs.TurnJob, 1)
	failed := make(chan failure, 1)

	q := startQueue(t, func(topic string, payload []byte, err error) {
		failed <- failure{topic, payload, err}
	}, func(q *jobs.WatermillQueue) {
		require.NoError(t, q.Handle(jobs.TopicTurnInvoke, func(_ context.Context, payload []byte) error {
			if calls.Add(1) < 3 {
				return errors.New("transient")
			}
			job, err := jobs.Decode[jobs.TurnJob](payload)
			if err != nil {
				return err
			}
			handled <- job
			return nil
		}))
	})

	require.NoError(t, q.Enqueue(context.Background(), jobs.TurnJob{ThreadID: "t1", Content: "hello"}))

	select {
	case job := <-handled:
		assert.Equal(t, "hello", job.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not handled")
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, failed)
}

func TestWatermillQueueReportsTerminalFailure(t *testing.T) {
	var calls atomic.Int32
	failed := make(chan failure, 1)

	q := startQueue(t, func(topic string, payload []byte, err error) {
		failed <- failure{topic, payload, err}
	}, func(q *jobs.WatermillQueue) {
		require.NoError(t, q.Handle(jobs.TopicMemoryExtract, func(context.Context, []byte) error {
			calls.Add(1)
			return errors.New("model down")
		}))
	})

	require.NoError(t, q.Enqueue(context.Background(), jobs.ExtractionJob{UserID: "u1", ThreadID: "t9"}))

	select {
	case f := <-failed:
		assert.Equal(t, jobs.TopicMemoryExtract, f.topic)
		assert.ErrorContains(t, f.err, "model down")
		job, err := jobs.Decode[jobs.ExtractionJob](f.payload)
		require.NoError(t, err)
		assert.Equal(t, "t9", job.ThreadID)
	case <-time.After(5 * time.Second):
		t.Fatal("terminal failure was not reported")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestWatermillQueueRecoversPanics(t *testing.T) {
	failed := make(chan failure, 1)

	q := startQueue(t, func(topic string, payload []byte, err error) {
		failed <- failure{topic, payload, err}
	}, func(q *jobs.WatermillQueue) {
		require.NoError(t, q.Handle(jobs.TopicInitiatePoint, func(context.Context, []byte) error {
			panic("boom")
		}))
	})

	require.NoError(t, q.Enqueue(context.Background(), jobs.InitiatePointJob{ThreadID: "t1", PointSlug: "goals"}))

	select {
	case f := <-failed:
		assert.Equal(t, jobs.TopicInitiatePoint, f.topic)
		assert.ErrorContains(t, f.err, "boom")
	case <-time.After(5 * time.Second):
		t.Fatal("panic was not reported as a failure")
	}
}

func TestQueueCarriesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID := trace.TraceID{0x0a, 0x0b, 0x0c, 0x0d, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})

	got := make(chan trace.SpanContext, 1)
	q := startQueue(t, nil, func(q *jobs.WatermillQueue) {
		require.NoError(t, q.Handle(jobs.TopicTurnInvoke, func(ctx context.Context, _ []byte) error {
			got <- trace.SpanContextFromContext(ctx)
			return nil
		}))
	})

	ctx := trace.ContextWithSpanContext(context.Background(), parent)
	require.NoError(t, q.Enqueue(ctx, jobs.TurnJob{ThreadID: "t1"}))

	select {
	case sc := <-got:
		assert.Equal(t, traceID, sc.TraceID())
		assert.True(t, sc.IsRemote())
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}
}
