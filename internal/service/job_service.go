package service

import (
	"context"
	"fmt"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/jobs"
	"sdm-platform-be/pkg/memory/extraction"
	"sdm-platform-be/pkg/status"
)

const jobModule = "job_service"

// JobObserver receives per-job outcomes.
type JobObserver interface {
	JobFinished(topic string, err error)
	JobAbandoned(topic string)
	ExtractionFinished(err error)
}

type IJobService interface {
	// Register binds every job topic to its handler on the consumer.
	Register(consumer jobs.Consumer) error
	// OnTerminalFailure runs once a job has used all of its attempts.
	OnTerminalFailure(topic string, payload []byte, err error)
}

type jobService struct {
	turns     ITurnService
	extractor *extraction.Extractor
	notifier  status.Notifier
	observer  JobObserver
	logger    logger.ILogger
}

func NewJobService(turns ITurnService, extractor *extraction.Extractor, notifier status.Notifier, observer JobObserver, log logger.ILogger) IJobService {
	if notifier == nil {
		notifier = status.NopNotifier{}
	}
	return &jobService{
		turns:     turns,
		extractor: extractor,
		notifier:  notifier,
		observer:  observer,
		logger:    log,
	}
}

func (s *jobService) Register(consumer jobs.Consumer) error {
	handlers := map[string]jobs.Handler{
		jobs.TopicTurnInvoke:    s.observed(jobs.TopicTurnInvoke, s.handleTurn),
		jobs.TopicInitiatePoint: s.observed(jobs.TopicInitiatePoint, s.handleInitiatePoint),
		jobs.TopicMemoryExtract: s.observed(jobs.TopicMemoryExtract, s.handleExtraction),
	}
	for topic, h := range handlers {
		if err := consumer.Handle(topic, h); err != nil {
			return fmt.Errorf("register %s: %w", topic, err)
		}
	}
	return nil
}

func (s *jobService) observed(topic string, h jobs.Handler) jobs.Handler {
	return func(ctx context.Context, payload []byte) error {
		err := h(ctx, payload)
		if s.observer != nil {
			s.observer.JobFinished(topic, err)
		}
		return err
	}
}

func (s *jobService) handleTurn(ctx context.Context, payload []byte) error {
	job, err := jobs.Decode[jobs.TurnJob](payload)
	if err != nil {
		return err
	}
	_, err = s.turns.InvokeTurn(ctx, TurnRequest{
		ThreadID:    job.ThreadID,
		UserID:      job.UserID,
		Username:    job.Username,
		JourneySlug: job.JourneySlug,
		MessageID:   job.MessageID,
		Message:     job.Content,
	})
	return err
}

func (s *jobService) handleInitiatePoint(ctx context.Context, payload []byte) error {
	job, err := jobs.Decode[jobs.InitiatePointJob](payload)
	if err != nil {
		return err
	}
	_, err = s.turns.InitiateConversationPoint(ctx, InitiatePointRequest{
		ThreadID:    job.ThreadID,
		UserID:      job.UserID,
		JourneySlug: job.JourneySlug,
		PointSlug:   job.PointSlug,
	})
	return err
}

func (s *jobService) handleExtraction(ctx context.Context, payload []byte) error {
	job, err := jobs.Decode[jobs.ExtractionJob](payload)
	if err != nil {
		return err
	}
	err = s.extractor.Run(ctx, job)
	if s.observer != nil {
		s.observer.ExtractionFinished(err)
	}
	return err
}

// OnTerminalFailure closes the thinking indicator a failed turn left open.
func (s *jobService) OnTerminalFailure(topic string, payload []byte, err error) {
	s.logger.Error(jobModule, "Job abandoned after final attempt", map[string]interface{}{
		"topic": topic,
		"error": err.Error(),
	})
	if s.observer != nil {
		s.observer.JobAbandoned(topic)
	}

	var threadID string
	switch topic {
	case jobs.TopicTurnInvoke:
		if job, derr := jobs.Decode[jobs.TurnJob](payload); derr == nil {
			threadID = job.ThreadID
		}
	case jobs.TopicInitiatePoint:
		if job, derr := jobs.Decode[jobs.InitiatePointJob](payload); derr == nil {
			threadID = job.ThreadID
		}
	}
	if threadID != "" {
		s.notifier.Send(context.Background(), threadID, status.ThinkingEnd())
	}
}
