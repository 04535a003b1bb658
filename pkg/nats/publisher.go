package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"sdm-platform-be/pkg/jobs"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/propagation"
)

// Publisher enqueues jobs on the JOBS stream.
type Publisher struct {
	js jetstream.JetStream
}

var _ jobs.Queue = (*Publisher)(nil)

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

func (p *Publisher) Enqueue(ctx context.Context, job jobs.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal %s job: %w", job.Topic(), err)
	}

	subject := subjectFor(job.Topic())
	msg := nats.NewMsg(subject)
	msg.Data = data
	jobs.InjectTrace(ctx, propagation.HeaderCarrier(msg.Header))
	if _, err := p.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish job to subject %s: %w", subject, err)
	}
	return nil
}
