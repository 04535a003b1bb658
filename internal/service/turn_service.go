package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sdm-platform-be/internal/constant"
	"sdm-platform-be/internal/dto"
	"sdm-platform-be/internal/entity"
	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/internal/repository/contract"
	"sdm-platform-be/internal/repository/specification"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/graph/modes"
	"sdm-platform-be/pkg/jobs"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/memory"
	"sdm-platform-be/pkg/status"

	"github.com/google/uuid"
)

const turnModule = "turn_service"

// TurnGraph is the part of *graph.CompiledGraph the service drives.
type TurnGraph interface {
	Invoke(ctx context.Context, input graph.Input, cfg graph.RunConfig) (*graph.Result, error)
	GetState(ctx context.Context, threadID string) (*graph.Snapshot, error)
	History(ctx context.Context, threadID string) ([]graph.Snapshot, error)
	UpdateState(ctx context.Context, threadID string, msgs ...llm.Message) (*graph.State, error)
	DeleteThread(ctx context.Context, threadID string) error
}

// TurnObserver receives turn outcomes, e.g. for metrics.
type TurnObserver interface {
	TurnFinished(trigger string, state *graph.State, err error)
}

type TurnRequest struct {
	ThreadID    string
	UserID      string
	Username    string
	JourneySlug string
	MessageID   string
	Message     string
}

type InitiatePointRequest struct {
	ThreadID    string
	UserID      string
	JourneySlug string
	PointSlug   string
}

type ITurnService interface {
	// SendMessage records the thread and queues a turn for the message.
	SendMessage(ctx context.Context, userID, username, threadID string, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	// RequestConversationPoint queues an assistant-initiated message for a point.
	RequestConversationPoint(ctx context.Context, userID, threadID, pointSlug string, req *dto.InitiatePointRequest) (*dto.InitiatePointResponse, error)

	InvokeTurn(ctx context.Context, req TurnRequest) (*dto.TurnReply, error)
	InitiateConversationPoint(ctx context.Context, req InitiatePointRequest) (*dto.TurnReply, error)
	GetHistory(ctx context.Context, userID, threadID string) ([]dto.HistoryEntryResponse, error)
	DeleteThread(ctx context.Context, userID, threadID string) error
	ForgetUser(ctx context.Context, userID string) (*dto.ForgetUserResponse, error)
}

type TurnServiceDeps struct {
	Graph         TurnGraph
	Mode          string
	Provider      llm.LLMProvider
	AssistantName string
	Profiles      *memory.ProfileManager
	Points        *memory.PointManager
	Catalog       memory.PointCatalog
	Journeys      contract.JourneyRepository
	MemoryStore   memory.Store
	Conversations contract.ConversationRepository
	Queue         jobs.Queue
	Notifier      status.Notifier
	Observer      TurnObserver
	Logger        logger.ILogger
}

type turnService struct {
	TurnServiceDeps
	now func() time.Time
}

func NewTurnService(deps TurnServiceDeps) ITurnService {
	if deps.Notifier == nil {
		deps.Notifier = status.NopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	return &turnService{
		TurnServiceDeps: deps,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *turnService) SendMessage(ctx context.Context, userID, username, threadID string, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	conv, err := s.ensureConversation(ctx, userID, threadID, req.JourneySlug)
	if err != nil {
		return nil, err
	}

	job := jobs.TurnJob{
		ThreadID:    threadID,
		UserID:      userID,
		Username:    username,
		JourneySlug: conv.JourneySlug,
		MessageID:   uuid.NewString(),
		Content:     req.Message,
	}
	if err := s.Queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue turn: %w", err)
	}

	return &dto.SendMessageResponse{
		ThreadId:  threadID,
		MessageId: job.MessageID,
		Status:    "queued",
	}, nil
}

func (s *turnService) RequestConversationPoint(ctx context.Context, userID, threadID, pointSlug string, req *dto.InitiatePointRequest) (*dto.InitiatePointResponse, error) {
	if _, err := s.ownedConversation(ctx, userID, threadID); err != nil {
		return nil, err
	}
	point, err := s.Catalog.GetActive(ctx, req.JourneySlug, pointSlug)
	if err != nil {
		return nil, fmt.Errorf("get conversation point: %w", err)
	}
	if point == nil {
		return nil, ErrPointNotFound
	}

	job := jobs.InitiatePointJob{
		ThreadID:    threadID,
		UserID:      userID,
		JourneySlug: req.JourneySlug,
		PointSlug:   pointSlug,
	}
	if err := s.Queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue conversation point: %w", err)
	}
	return &dto.InitiatePointResponse{ThreadId: threadID, PointSlug: pointSlug, Status: "queued"}, nil
}

func (s *turnService) InvokeTurn(ctx context.Context, req TurnRequest) (*dto.TurnReply, error) {
	trigger := status.TriggerUserMessage
	if s.Mode == modes.ModeAutonomous {
		trigger = status.TriggerAutonomous
	}
	s.Notifier.Send(ctx, req.ThreadID, status.ThinkingStart(trigger))
	defer s.Notifier.Send(context.WithoutCancel(ctx), req.ThreadID, status.ThinkingEnd())

	systemPrompt := ""
	journeySlug := req.JourneySlug
	if conv := s.findConversation(ctx, req.ThreadID); conv != nil {
		systemPrompt = conv.SystemPrompt
		if journeySlug == "" {
			journeySlug = conv.JourneySlug
		}
	}

	human := llm.NewHumanMessage(req.Message)
	if req.MessageID != "" {
		human.ID = req.MessageID
	}
	human.Name = req.Username

	result, err := s.Graph.Invoke(ctx, graph.Input{
		Messages:     []llm.Message{human},
		SystemPrompt: systemPrompt,
	}, graph.RunConfig{
		ThreadID:    req.ThreadID,
		UserID:      req.UserID,
		JourneySlug: journeySlug,
	})
	if s.Observer != nil {
		var state *graph.State
		if result != nil {
			state = &result.State
		}
		s.Observer.TurnFinished(trigger, state, err)
	}
	if err != nil {
		return nil, fmt.Errorf("invoke turn on %s: %w", req.ThreadID, err)
	}
	if result.Reply == nil {
		return nil, nil
	}

	// User message and reply.
	s.recordMessages(ctx, req.ThreadID, 2)

	return &dto.TurnReply{
		Message:      dto.NewMessageDTO(*result.Reply),
		Citations:    result.State.TurnCitations,
		DecisionAids: result.State.TurnDecisionAids,
	}, nil
}

func (s *turnService) InitiateConversationPoint(ctx context.Context, req InitiatePointRequest) (*dto.TurnReply, error) {
	s.Notifier.Send(ctx, req.ThreadID, status.ThinkingStart(status.TriggerConversationPoint))
	defer s.Notifier.Send(context.WithoutCancel(ctx), req.ThreadID, status.ThinkingEnd())

	point, err := s.Catalog.GetActive(ctx, req.JourneySlug, req.PointSlug)
	if err != nil {
		return nil, fmt.Errorf("get conversation point: %w", err)
	}
	if point == nil {
		return nil, ErrPointNotFound
	}

	var history []llm.Message
	systemPrompt := ""
	snap, err := s.Graph.GetState(ctx, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("load thread state: %w", err)
	}
	if snap != nil {
		history = snap.State.Messages
		systemPrompt = snap.State.SystemPrompt
	}
	if conv := s.findConversation(ctx, req.ThreadID); conv != nil && conv.SystemPrompt != "" {
		systemPrompt = conv.SystemPrompt
	}

	userContext := ""
	if profile, err := s.Profiles.Get(ctx, req.UserID); err != nil {
		s.Logger.Warn(turnModule, "Failed to load profile for conversation point", map[string]interface{}{
			"thread_id": req.ThreadID,
			"error":     err.Error(),
		})
	} else {
		userContext = memory.FormatForPrompt(profile)
	}

	known, err := s.Points.Get(ctx, req.UserID, req.JourneySlug, req.PointSlug)
	if err != nil {
		s.Logger.Warn(turnModule, "Failed to load point memory", map[string]interface{}{
			"point": req.PointSlug,
			"error": err.Error(),
		})
		known = nil
	}

	prompt := buildElicitationMessages(systemPrompt, userContext, *point, known, history)
	reply, err := s.Provider.Chat(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate conversation point message: %w", err)
	}

	msg := llm.NewAIMessage(reply.Content).
		WithMetadata(constant.MetadataInitiatedPoint, "true").
		WithMetadata(constant.MetadataPointSlug, req.PointSlug)
	msg.Name = s.AssistantName
	if _, err := s.Graph.UpdateState(ctx, req.ThreadID, msg); err != nil {
		return nil, fmt.Errorf("append conversation point message: %w", err)
	}

	if _, err := s.Points.MarkInitiated(ctx, req.UserID, req.JourneySlug, req.PointSlug); err != nil {
		s.Logger.Warn(turnModule, "Failed to mark point initiated", map[string]interface{}{
			"point": req.PointSlug,
			"error": err.Error(),
		})
	}
	s.recordMessages(ctx, req.ThreadID, 1)

	return &dto.TurnReply{Message: dto.NewMessageDTO(msg)}, nil
}

func (s *turnService) GetHistory(ctx context.Context, userID, threadID string) ([]dto.HistoryEntryResponse, error) {
	if _, err := s.ownedConversation(ctx, userID, threadID); err != nil {
		return nil, err
	}
	snaps, err := s.Graph.History(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", threadID, err)
	}
	return dto.NewHistoryResponse(graph.DiffHistory(snaps)), nil
}

// DeleteThread removes the thread's checkpoints. Storage failures are logged only.
func (s *turnService) DeleteThread(ctx context.Context, userID, threadID string) error {
	if _, err := s.ownedConversation(ctx, userID, threadID); err != nil {
		return err
	}
	if err := s.Graph.DeleteThread(ctx, threadID); err != nil {
		s.Logger.Error(turnModule, "Failed to delete thread checkpoints", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
	}
	if err := s.Conversations.DeleteByThreadID(ctx, threadID); err != nil {
		s.Logger.Error(turnModule, "Failed to delete conversation", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
	}
	return nil
}

func (s *turnService) ForgetUser(ctx context.Context, userID string) (*dto.ForgetUserResponse, error) {
	convs, err := s.Conversations.FindAll(ctx, specification.ByUserID{UserID: userID})
	if err != nil {
		s.Logger.Warn(turnModule, "Failed to list user journeys", map[string]interface{}{"error": err.Error()})
	}
	var journeys []string
	seen := map[string]struct{}{}
	for _, c := range convs {
		if c.JourneySlug == "" {
			continue
		}
		if _, dup := seen[c.JourneySlug]; dup {
			continue
		}
		seen[c.JourneySlug] = struct{}{}
		journeys = append(journeys, c.JourneySlug)
	}
	deleted := memory.DeleteUserMemories(ctx, s.MemoryStore, s.Logger, userID, journeys)
	return &dto.ForgetUserResponse{DeletedItems: deleted}, nil
}

// ensureConversation creates the thread record on first use. The system prompt is
// copied from the journey, never taken from the request.
func (s *turnService) ensureConversation(ctx context.Context, userID, threadID, journeySlug string) (*entity.Conversation, error) {
	conv, err := s.ownedConversation(ctx, userID, threadID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrThreadNotFound) {
		return nil, err
	}

	systemPrompt := ""
	if journeySlug != "" {
		journey, err := s.Journeys.FindActiveJourney(ctx, journeySlug)
		if err != nil {
			return nil, fmt.Errorf("find journey: %w", err)
		}
		if journey == nil {
			return nil, fmt.Errorf("%w: %s", ErrJourneyNotFound, journeySlug)
		}
		systemPrompt = journey.SystemPrompt
	}

	conv = &entity.Conversation{
		ThreadId:     threadID,
		UserId:       userID,
		JourneySlug:  journeySlug,
		SystemPrompt: systemPrompt,
	}
	if err := s.Conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// ownedConversation returns ErrThreadNotFound for an unknown thread and
// ErrThreadForbidden when another user owns it.
func (s *turnService) ownedConversation(ctx context.Context, userID, threadID string) (*entity.Conversation, error) {
	conv, err := s.Conversations.FindOne(ctx, specification.ByThreadID{ThreadID: threadID})
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrThreadNotFound
	}
	if conv.UserId != userID {
		return nil, ErrThreadForbidden
	}
	return conv, nil
}

func (s *turnService) findConversation(ctx context.Context, threadID string) *entity.Conversation {
	conv, err := s.Conversations.FindOne(ctx, specification.ByThreadID{ThreadID: threadID})
	if err != nil {
		s.Logger.Warn(turnModule, "Failed to load conversation", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
		return nil
	}
	return conv
}

func (s *turnService) recordMessages(ctx context.Context, threadID string, count int) {
	if err := s.Conversations.RecordMessages(ctx, threadID, count, s.now()); err != nil {
		s.Logger.Warn(turnModule, "Failed to update conversation analytics", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
	}
}
