package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"sdm-platform-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/propagation"
)

const moduleName = "jobs"

// WatermillQueue is the in-process job backend: a GoChannel pub/sub driven by a
// watermill router with retry and timeout middleware.
type WatermillQueue struct {
	pubSub    *gochannel.GoChannel
	router    *message.Router
	logger    logger.ILogger
	onFailure FailureFunc
}

var (
	_ Queue    = (*WatermillQueue)(nil)
	_ Consumer = (*WatermillQueue)(nil)
)

func NewWatermillQueue(policy Policy, log logger.ILogger, onFailure FailureFunc) (*WatermillQueue, error) {
	wmLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: policy.HardTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	q := &WatermillQueue{
		pubSub:    pubSub,
		router:    router,
		logger:    log,
		onFailure: onFailure,
	}

	retries := policy.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	// The first middleware is the outermost.
	chain := []message.HandlerMiddleware{
		q.recordTerminalFailure,
		middleware.Retry{
			MaxRetries:      retries,
			InitialInterval: policy.InitialBackoff,
			MaxInterval:     policy.MaxBackoff,
			Multiplier:      policy.Multiplier,
			Logger:          wmLogger,
		}.Middleware,
	}
	if policy.SoftTimeout > 0 {
		chain = append(chain, middleware.Timeout(policy.SoftTimeout))
	}
	chain = append(chain, middleware.Recoverer)
	router.AddMiddleware(chain...)
	return q, nil
}

func (q *WatermillQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", job.Topic(), err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	InjectTrace(ctx, propagation.MapCarrier(msg.Metadata))
	if err := q.pubSub.Publish(job.Topic(), msg); err != nil {
		return fmt.Errorf("publish %s job: %w", job.Topic(), err)
	}
	return nil
}

func (q *WatermillQueue) Handle(topic string, h Handler) error {
	q.router.AddNoPublisherHandler(topic+"_handler", topic, q.pubSub, func(msg *message.Message) error {
		return h(ExtractTrace(msg.Context(), propagation.MapCarrier(msg.Metadata)), msg.Payload)
	})
	return nil
}

// Run blocks until ctx is cancelled or the router is closed.
func (q *WatermillQueue) Run(ctx context.Context) error {
	return q.router.Run(ctx)
}

// Running is closed once handlers are subscribed.
func (q *WatermillQueue) Running() chan struct{} {
	return q.router.Running()
}

func (q *WatermillQueue) Close() error {
	if err := q.router.Close(); err != nil {
		return err
	}
	return q.pubSub.Close()
}

// recordTerminalFailure sits outside the retry middleware: an error reaching it means
// every attempt failed. The message is acked so it is not redelivered forever.
func (q *WatermillQueue) recordTerminalFailure(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		produced, err := h(msg)
		if err == nil {
			return produced, nil
		}
		topic := message.SubscribeTopicFromCtx(msg.Context())
		q.logger.Error(moduleName, "Job failed permanently", map[string]interface{}{
			"topic":      topic,
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		if q.onFailure != nil {
			q.onFailure(topic, msg.Payload, err)
		}
		return nil, nil
	}
}
