package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/jobs"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/propagation"
)

const moduleName = "nats"

// Subscriber consumes jobs with durable consumers. Retries are driven by JetStream
// redelivery: MaxDeliver bounds attempts and failed attempts are NAKed with backoff.
type Subscriber struct {
	nc        *nats.Conn
	js        jetstream.JetStream
	policy    jobs.Policy
	logger    logger.ILogger
	onFailure jobs.FailureFunc

	mu       sync.Mutex
	handlers map[string]jobs.Handler
	running  []jetstream.ConsumeContext
}

var _ jobs.Consumer = (*Subscriber)(nil)

func NewSubscriber(nc *nats.Conn, js jetstream.JetStream, policy jobs.Policy, log logger.ILogger, onFailure jobs.FailureFunc) *Subscriber {
	return &Subscriber{
		nc:        nc,
		js:        js,
		policy:    policy,
		logger:    log,
		onFailure: onFailure,
		handlers:  make(map[string]jobs.Handler),
	}
}

func (s *Subscriber) Handle(topic string, h jobs.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handlers[topic]; exists {
		return fmt.Errorf("handler for %s already registered", topic)
	}
	s.handlers[topic] = h
	return nil
}

// Run starts one durable consumer per topic and blocks until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	s.mu.Lock()
	for topic, h := range s.handlers {
		cc, err := s.consume(ctx, topic, h)
		if err != nil {
			s.mu.Unlock()
			s.stop()
			return err
		}
		s.running = append(s.running, cc)
	}
	s.mu.Unlock()

	<-ctx.Done()
	s.stop()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (s *Subscriber) consume(ctx context.Context, topic string, h jobs.Handler) (jetstream.ConsumeContext, error) {
	durable := strings.ReplaceAll(topic, ".", "_")
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subjectFor(topic),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       s.policy.HardTimeout,
		MaxDeliver:    s.policy.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s: %w", durable, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		s.dispatch(ctx, topic, h, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming %s: %w", topic, err)
	}

	s.logger.Info(moduleName, "Subscribed to job topic", map[string]interface{}{
		"topic":   topic,
		"durable": durable,
	})
	return cc, nil
}

func (s *Subscriber) dispatch(ctx context.Context, topic string, h jobs.Handler, msg jetstream.Msg) {
	attempt := 1
	if md, err := msg.Metadata(); err == nil {
		attempt = int(md.NumDelivered)
	}

	ctx = jobs.ExtractTrace(ctx, propagation.HeaderCarrier(msg.Headers()))
	err := s.runAttempt(ctx, h, msg.Data())
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			s.logger.Warn(moduleName, "Failed to ack job", map[string]interface{}{"topic": topic, "error": ackErr.Error()})
		}
		return
	}

	if attempt >= s.policy.MaxAttempts {
		s.logger.Error(moduleName, "Job failed permanently", map[string]interface{}{
			"topic":    topic,
			"attempts": attempt,
			"error":    err.Error(),
		})
		if s.onFailure != nil {
			s.onFailure(topic, msg.Data(), err)
		}
		_ = msg.Term()
		return
	}

	delay := s.policy.Backoff(attempt)
	s.logger.Warn(moduleName, "Job attempt failed, retrying", map[string]interface{}{
		"topic":   topic,
		"attempt": attempt,
		"delay":   delay.String(),
		"error":   err.Error(),
	})
	_ = msg.NakWithDelay(delay)
}

func (s *Subscriber) runAttempt(ctx context.Context, h jobs.Handler, payload []byte) (err error) {
	if s.policy.SoftTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.policy.SoftTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h(ctx, payload)
}

func (s *Subscriber) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cc := range s.running {
		cc.Stop()
	}
	s.running = nil
}

// Close stops consumers and closes the shared connection.
func (s *Subscriber) Close() error {
	s.stop()
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}
