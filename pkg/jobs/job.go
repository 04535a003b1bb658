package jobs

import (
	"context"
	"encoding/json"
	"time"
)

const (
	TopicTurnInvoke    = "turn.invoke"
	TopicInitiatePoint = "turn.initiate_point"
	TopicMemoryExtract = "memory.extract"
)

// Job is a unit of background work routed by topic.
type Job interface {
	Topic() string
}

// TurnJob runs one full graph turn for a new human message.
type TurnJob struct {
	ThreadID    string `json:"thread_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	JourneySlug string `json:"journey_slug,omitempty"`
	MessageID   string `json:"message_id"`
	Content     string `json:"content"`
}

func (TurnJob) Topic() string { return TopicTurnInvoke }

// InitiatePointJob asks the assistant to open a conversation point.
type InitiatePointJob struct {
	ThreadID    string `json:"thread_id"`
	UserID      string `json:"user_id"`
	JourneySlug string `json:"journey_slug"`
	PointSlug   string `json:"point_slug"`
}

func (InitiatePointJob) Topic() string { return TopicInitiatePoint }

type ExtractionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExtractionJob extracts memories from a recent message window.
type ExtractionJob struct {
	UserID      string              `json:"user_id"`
	JourneySlug string              `json:"journey_slug,omitempty"`
	ThreadID    string              `json:"thread_id,omitempty"`
	Messages    []ExtractionMessage `json:"messages"`
}

func (ExtractionJob) Topic() string { return TopicMemoryExtract }

// Queue enqueues jobs without waiting for them to run.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Handler processes one job payload. Returning an error schedules a retry.
type Handler func(ctx context.Context, payload []byte) error

// FailureFunc is called once a job has exhausted its attempts.
type FailureFunc func(topic string, payload []byte, err error)

// Consumer dispatches queued jobs to handlers.
type Consumer interface {
	Handle(topic string, h Handler) error
	Run(ctx context.Context) error
	Close() error
}

// Decode is a helper for handlers.
func Decode[T any](payload []byte) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}

// Policy bounds retries and run time of every job.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// SoftTimeout is the context deadline of one attempt.
	SoftTimeout time.Duration
	// HardTimeout is when the backend gives up on an unacknowledged attempt.
	HardTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
		SoftTimeout:    2 * time.Minute,
		HardTimeout:    3 * time.Minute,
	}
}

// Backoff returns the delay before the retry that follows the given attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}
