package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"sdm-platform-be/internal/constant"
	"sdm-platform-be/internal/dto"
	"sdm-platform-be/internal/entity"
	"sdm-platform-be/internal/pkg/logger"
	memstore "sdm-platform-be/internal/repository/memory"
	"sdm-platform-be/internal/repository/specification"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/graph/modes"
	"sdm-platform-be/pkg/jobs"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/llm/llmtest"
	"sdm-platform-be/pkg/memory"
	"sdm-platform-be/pkg/retrieval"
	"sdm-platform-be/pkg/status"
	"sdm-platform-be/pkg/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noEvidence struct{}

func (noEvidence) Rank(context.Context, string, string) []retrieval.Citation { return nil }

type recordingQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) topics() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.jobs))
	for i, j := range q.jobs {
		out[i] = j.Topic()
	}
	return out
}

type sentEvent struct {
	thread string
	event  status.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Send(_ context.Context, threadID string, event status.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{threadID, event})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.event.Type
	}
	return out
}

type turnFixture struct {
	svc           ITurnService
	graph         *graph.CompiledGraph
	provider      *llmtest.Provider
	queue         *recordingQueue
	notifier      *recordingNotifier
	conversations *memstore.ConversationStore
	catalog       *memstore.CatalogStore
	store         *memstore.MemoryStore
	points        *memory.PointManager
	profiles      *memory.ProfileManager
}

func newTurnFixture(t *testing.T, mode string, replies ...llm.Message) turnFixture {
	t.Helper()
	log := logger.NewNopLogger()
	store := memstore.NewMemoryStore()
	catalog := memstore.NewCatalogStore()
	catalog.AddJourneys(
		entity.Journey{Slug: "knee", Name: "Knee replacement", SystemPrompt: "Be kind.", IsActive: true},
		entity.Journey{Slug: "hip", Name: "Hip replacement", IsActive: false},
	)
	catalog.AddPoints(memory.ConversationPoint{
		Slug:             "goals",
		JourneySlug:      "knee",
		Title:            "Your goals",
		Description:      "What the patient hopes to get back to.",
		ElicitationGoals: []string{"activities", "timeline", "support"},
		IsActive:         true,
	})
	reg, err := tools.NewRegistry(tools.NewShowDecisionAid(catalog))
	require.NoError(t, err)

	provider := llmtest.NewProvider(replies...)
	queue := &recordingQueue{}
	profiles := memory.NewProfileManager(store, log)
	g, err := modes.NewRegistry().Build(mode, modes.Deps{
		Provider:     provider,
		Tools:        reg,
		Ranker:       noEvidence{},
		Profiles:     profiles,
		Queue:        queue,
		Checkpointer: graph.NewMemoryCheckpointer(),
		Logger:       log,
	})
	require.NoError(t, err)

	f := turnFixture{
		graph:         g,
		provider:      provider,
		queue:         queue,
		notifier:      &recordingNotifier{},
		conversations: memstore.NewConversationStore(),
		catalog:       catalog,
		store:         store,
		points:        memory.NewPointManager(store, log),
		profiles:      profiles,
	}
	f.svc = NewTurnService(TurnServiceDeps{
		Graph:         g,
		Mode:          mode,
		Provider:      provider,
		AssistantName: "Ava",
		Profiles:      profiles,
		Points:        f.points,
		Catalog:       catalog,
		Journeys:      catalog,
		MemoryStore:   store,
		Conversations: f.conversations,
		Queue:         queue,
		Notifier:      f.notifier,
		Logger:        log,
	})
	return f
}

func (f turnFixture) conversation(t *testing.T, threadID string) *entity.Conversation {
	t.Helper()
	conv, err := f.conversations.FindOne(context.Background(), specification.ByThreadID{ThreadID: threadID})
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv
}

func TestSendMessageQueuesTurn(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, modes.ModeAutonomous)

	resp, err := f.svc.SendMessage(ctx, "u1", "dana", "t1", &dto.SendMessageRequest{Message: "hi", JourneySlug: "knee"})
	require.NoError(t, err)
	assert.Equal(t, "queued", resp.Status)
	assert.NotEmpty(t, resp.MessageId)

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0].(jobs.TurnJob)
	assert.Equal(t, jobs.TurnJob{ThreadID: "t1", UserID: "u1", Username: "dana", JourneySlug: "knee", MessageID: resp.MessageId, Content: "hi"}, job)

	conv := f.conversation(t, "t1")
	assert.Equal(t, "Be kind.", conv.SystemPrompt)

	// The journey of an existing thread wins over the request.
	_, err = f.svc.SendMessage(ctx, "u1", "dana", "t1", &dto.SendMessageRequest{Message: "again", JourneySlug: "hip"})
	require.NoError(t, err)
	assert.Equal(t, "knee", f.queue.jobs[1].(jobs.TurnJob).JourneySlug)

	_, err = f.svc.SendMessage(ctx, "u2", "eli", "t1", &dto.SendMessageRequest{Message: "mine now"})
	assert.ErrorIs(t, err, ErrThreadForbidden)
}

func TestSendMessageTakesSystemPromptFromJourney(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, modes.ModeAutonomous)

	tests := []struct {
		name       string
		thread     string
		journey    string
		wantErr    error
		wantPrompt string
	}{
		{"active journey", "t-knee", "knee", nil, "Be kind."},
		{"no journey", "t-none", "", nil, ""},
		{"inactive journey", "t-hip", "hip", ErrJourneyNotFound, ""},
		{"unknown journey", "t-elbow", "elbow", ErrJourneyNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(ctx, "u1", "dana", tt.thread, &dto.SendMessageRequest{Message: "hi", JourneySlug: tt.journey})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				conv, findErr := f.conversations.FindOne(ctx, specification.ByThreadID{ThreadID: tt.thread})
				require.NoError(t, findErr)
				assert.Nil(t, conv, "no conversation is created")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrompt, f.conversation(t, tt.thread).SystemPrompt)
		})
	}
}

func TestSendMessageQueueFailure(t *testing.T) {
	f := newTurnFixture(t, modes.ModeAutonomous)
	f.queue.err = errors.New("broker down")

	_, err := f.svc.SendMessage(context.Background(), "u1", "dana", "t1", &dto.SendMessageRequest{Message: "hi"})
	assert.ErrorContains(t, err, "broker down")
}

func TestInvokeTurn(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, modes.ModeAutonomous, llm.NewAIMessage("Hello Dana."))
	_, err := f.svc.SendMessage(ctx, "u1", "dana", "t1", &dto.SendMessageRequest{Message: "hi", JourneySlug: "knee"})
	require.NoError(t, err)

	reply, err := f.svc.InvokeTurn(ctx, TurnRequest{ThreadID: "t1", UserID: "u1", Username: "dana", MessageID: "m-1", Message: "hi"})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "Hello Dana.", reply.Message.Content)
	assert.Equal(t, string(llm.RoleAI), reply.Message.Role)

	assert.Equal(t, []string{status.TypeThinkingStart, status.TypeThinkingEnd}, f.notifier.types())
	assert.Equal(t, status.TriggerAutonomous, f.notifier.events[0].event.Data["trigger"])

	snap, err := f.graph.GetState(ctx, "t1")
	require.NoError(t, err)
	var human *llm.Message
	for i := range snap.State.Messages {
		if snap.State.Messages[i].Role == llm.RoleHuman {
			human = &snap.State.Messages[i]
		}
	}
	require.NotNil(t, human)
	assert.Equal(t, "m-1", human.ID)
	assert.Equal(t, "dana", human.Name)
	assert.Equal(t, "Be kind.", snap.State.SystemPrompt)

	assert.Equal(t, 2, f.conversation(t, "t1").MessageCount)
	assert.Contains(t, f.queue.topics(), jobs.TopicMemoryExtract)
}

func TestInvokeTurnWithoutReply(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, modes.ModeAssistant)
	_, err := f.svc.SendMessage(ctx, "u1", "dana", "t1", &dto.SendMessageRequest{Message: "just noting this"})
	require.NoError(t, err)

	reply, err := f.svc.InvokeTurn(ctx, TurnRequest{ThreadID: "t1", UserID: "u1", Message: "just noting this"})
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Equal(t, 0, f.conversation(t, "t1").MessageCount)
	assert.Equal(t, status.TriggerUserMessage, f.notifier.events[0].event.Data["trigger"])
}

func TestInvokeTurnFailureStillEndsThinking(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, modes.ModeAutonomous)
	f.provider.Err = errors.New("model overloaded")

	_, err := f.svc.InvokeTurn(ctx, TurnRequest{ThreadID: "t1", UserID: "u1", Message: "hi"})
	assert.ErrorContains(t, err, "model overloaded")
	assert.Equal(t, []string{status.TypeThinkingStart, status.TypeThinkingEnd}, f.notifier.types())
}

func TestConversationPointFlow(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, modes.ModeAutonomous, llm.NewAIMessage("Sure."))
	_, err := f.svc.SendMessage(ctx, "u1", "dana", "t1", &dto.SendMessageRequest{Message: "hi", JourneySlug: "knee"})
	require.NoError(t, err)
	_, err = f.svc.InvokeTurn(ctx, TurnRequest{ThreadID: "t1", UserID: "u1", Message: "hi"})
	require.NoError(t, err)

	_, err = f.svc.RequestConversationPoint(ctx, "u1", "t1", "missing", &dto.InitiatePointRequest{JourneySlug: "knee"})
	assert.ErrorIs(t, err, ErrPointNotFound)
	_, err = f.svc.RequestConversationPoint(ctx, "u2", "t1", "goals", &dto.InitiatePointRequest{JourneySlug: "knee"})
	assert.ErrorIs(t, err, ErrThreadForbidden)

	resp, err := f.svc.RequestConversationPoint(ctx, "u1", "t1", "goals", &dto.InitiatePointRequest{JourneySlug: "knee"})
	require.NoError(t, err)
	assert.Equal(t, "queued", resp.Status)
	assert.Contains(t, f.queue.topics(), jobs.TopicInitiatePoint)

	f.provider.Respond = func([]llm.Message, *llm.Options) (llm.Message, error) {
		return llm.NewAIMessage("What would you like to get back to doing?"), nil
	}
	reply, err := f.svc.InitiateConversationPoint(ctx, InitiatePointRequest{ThreadID: "t1", UserID: "u1", JourneySlug: "knee", PointSlug: "goals"})
	require.NoError(t, err)
	assert.Equal(t, "Ava", reply.Message.Name)
	assert.Equal(t, "true", reply.Message.Metadata[constant.MetadataInitiatedPoint])
	assert.Equal(t, "goals", reply.Message.Metadata[constant.MetadataPointSlug])

	calls := f.provider.Calls()
	prompt := calls[len(calls)-1].History
	assert.Equal(t, llm.RoleSystem, prompt[0].Role)
	assert.True(t, strings.HasPrefix(prompt[0].Content, "Be kind."))
	assert.Contains(t, prompt[0].Content, "## Conversation Point: Your goals")
	last := prompt[len(prompt)-1]
	assert.Contains(t, last.Content, "activities, timeline")
	assert.NotContains(t, last.Content, "support")

	snap, err := f.graph.GetState(ctx, "t1")
	require.NoError(t, err)
	tail := snap.State.Messages[len(snap.State.Messages)-1]
	assert.Equal(t, "What would you like to get back to doing?", tail.Content)

	mem, err := f.points.Get(ctx, "u1", "knee", "goals")
	require.NoError(t, err)
	require.NotNil(t, mem)
	assert.True(t, mem.ManuallyInitiated)

	assert.Equal(t, 3, f.conversation(t, "t1").MessageCount)
}

func TestGetHistoryAndDeleteThread(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, modes.ModeAutonomous, llm.NewAIMessage("one"), llm.NewAIMessage("two"))
	_, err := f.svc.SendMessage(ctx, "u1", "dana", "t1", &dto.SendMessageRequest{Message: "a"})
	require.NoError(t, err)
	_, err = f.svc.InvokeTurn(ctx, TurnRequest{ThreadID: "t1", UserID: "u1", Message: "a"})
	require.NoError(t, err)
	_, err = f.svc.InvokeTurn(ctx, TurnRequest{ThreadID: "t1", UserID: "u1", Message: "b"})
	require.NoError(t, err)

	_, err = f.svc.GetHistory(ctx, "u1", "nope")
	assert.ErrorIs(t, err, ErrThreadNotFound)
	_, err = f.svc.GetHistory(ctx, "u2", "t1")
	assert.ErrorIs(t, err, ErrThreadForbidden)

	history, err := f.svc.GetHistory(ctx, "u1", "t1")
	require.NoError(t, err)
	var contents []string
	for _, e := range history {
		for _, m := range e.Messages {
			contents = append(contents, m.Content)
		}
	}
	assert.Equal(t, []string{"a", "one", "b", "two"}, contents)

	require.NoError(t, f.svc.DeleteThread(ctx, "u1", "t1"))
	snap, err := f.graph.GetState(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, snap)
	_, err = f.svc.GetHistory(ctx, "u1", "t1")
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestForgetUser(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, modes.ModeAutonomous)
	for _, thread := range []string{"t1", "t2"} {
		_, err := f.svc.SendMessage(ctx, "u1", "dana", thread, &dto.SendMessageRequest{Message: "hi", JourneySlug: "knee"})
		require.NoError(t, err)
	}
	name := "Dana"
	_, err := f.profiles.Update(ctx, "u1", memory.ProfileUpdate{Name: &name}, memory.SourceUserInput)
	require.NoError(t, err)
	_, err = f.points.MarkInitiated(ctx, "u1", "knee", "goals")
	require.NoError(t, err)

	resp, err := f.svc.ForgetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.DeletedItems)

	profile, err := f.profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestRecentDialogue(t *testing.T) {
	call := llmtest.ToolCallReply("c1", "show_decision_aid", nil)
	history := []llm.Message{
		llm.NewSystemMessage("sys"),
		llm.NewHumanMessage("h1"),
		llm.NewAIMessage("a1"),
		llm.NewHumanMessage("h2"),
		call,
		llm.NewToolMessage("c1", "{}"),
		llm.NewAIMessage("a2"),
	}
	got := recentDialogue(history, 3)
	var contents []string
	for _, m := range got {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"a1", "h2", "a2"}, contents)
}

func TestBuildElicitationSections(t *testing.T) {
	point := memory.ConversationPoint{Title: "Fears", Description: "Worries about surgery."}

	first := buildElicitationSections(point, nil)
	assert.Contains(t, first, constant.ElicitationFirstTime)

	known := &memory.ConversationPointMemory{
		ExtractedPoints: []string{"afraid of anaesthesia"},
		RelevantQuotes:  []string{"q1", "q2", "q3", "q4"},
	}
	sections := buildElicitationSections(point, known)
	joined := strings.Join(sections, "\n")
	assert.Contains(t, joined, constant.ElicitationKnownHeader)
	assert.Contains(t, joined, "- afraid of anaesthesia")
	assert.Contains(t, joined, `- "q3"`)
	assert.NotContains(t, joined, `- "q4"`)
	assert.Equal(t, constant.ElicitationTask, sections[len(sections)-1])
}
