package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/jobs"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/llm/llmtest"
	"sdm-platform-be/pkg/memory"
	"sdm-platform-be/pkg/retrieval"
	"sdm-platform-be/pkg/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nop = logger.NewNopLogger()

func stateWith(msgs ...llm.Message) graph.State {
	var s graph.State
	s.AddMessages(msgs...)
	return s
}

func TestRouters(t *testing.T) {
	ai := llm.NewAIMessage("hello from ai")
	tests := []struct {
		name       string
		state      graph.State
		assistant  string
		autonomous string
	}{
		{"empty state", graph.State{}, graph.END, graph.END},
		{"trigger prefix", stateWith(llm.NewHumanMessage("  @llm what is ACL?")), graph.NodeRetrieveAndAugment, graph.NodeRetrieveAndAugment},
		{"plain message", stateWith(llm.NewHumanMessage("hello")), graph.END, graph.NodeRetrieveAndAugment},
		{"empty content", stateWith(llm.NewHumanMessage("   ")), graph.END, graph.END},
		{"ai last", stateWith(llm.NewHumanMessage("@llm hi"), ai), graph.END, graph.END},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.assistant, AssistantRouter(nop)(tt.state))
			assert.Equal(t, tt.autonomous, AutonomousRouter(nop)(tt.state))
		})
	}
}

type profiles struct {
	profile *memory.UserProfile
	err     error
}

func (p profiles) Get(context.Context, string) (*memory.UserProfile, error) { return p.profile, p.err }

func TestLoadContext(t *testing.T) {
	name := "Dana"
	ctx := context.Background()
	cfg := graph.RunConfig{ThreadID: "t", UserID: "u"}

	out, err := LoadContext(profiles{profile: &memory.UserProfile{Name: &name}}, nop)(ctx, graph.State{UserContext: "stale"}, cfg)
	require.NoError(t, err)
	assert.Contains(t, out.UserContext, "Dana")

	out, err = LoadContext(profiles{err: errors.New("down")}, nop)(ctx, graph.State{UserContext: "stale"}, cfg)
	require.NoError(t, err)
	assert.Empty(t, out.UserContext)

	out, err = LoadContext(profiles{profile: &memory.UserProfile{Name: &name}}, nop)(ctx, graph.State{}, graph.RunConfig{ThreadID: "t"})
	require.NoError(t, err)
	assert.Empty(t, out.UserContext)
}

type ranker struct {
	citations []retrieval.Citation
	query     string
	journey   string
}

func (r *ranker) Rank(_ context.Context, query, journey string) []retrieval.Citation {
	r.query, r.journey = query, journey
	return r.citations
}

func TestRetrieveAndAugmentReplacesTurnContext(t *testing.T) {
	rk := &ranker{citations: []retrieval.Citation{{Index: 1, Collection: "doc_a", DocumentID: "d", Excerpt: "evidence"}}}
	node := RetrieveAndAugment(rk, nop)

	state := stateWith(llm.NewHumanMessage("@llm knee?"))
	state.SystemPrompt = "Journey prompt"

	out, err := node(context.Background(), state, graph.RunConfig{ThreadID: "t", JourneySlug: "knee"})
	require.NoError(t, err)
	assert.Equal(t, "@llm knee?", rk.query)
	assert.Equal(t, "knee", rk.journey)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, llm.RoleSystem, out.Messages[0].Role)
	assert.Contains(t, out.Messages[0].Content, "Journey prompt")
	assert.Contains(t, out.Messages[0].Content, "evidence")
	assert.Len(t, out.TurnCitations, 1)

	// Second turn: the old context message is dropped, a fresh one leads.
	out.AddMessages(llm.NewAIMessage("answer"), llm.NewHumanMessage("@llm more"))
	rk.citations = nil
	again, err := node(context.Background(), out, graph.RunConfig{ThreadID: "t"})
	require.NoError(t, err)

	var systems int
	for _, m := range again.Messages {
		if m.Role == llm.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
	assert.NotContains(t, again.Messages[0].Content, "evidence")
	assert.Empty(t, again.TurnCitations)
	assert.Len(t, again.Messages, 4)
}

func TestRetrieveAndAugmentWithoutContext(t *testing.T) {
	out, err := RetrieveAndAugment(&ranker{}, nop)(context.Background(), stateWith(llm.NewHumanMessage("@llm hi")), graph.RunConfig{ThreadID: "t"})
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, llm.RoleHuman, out.Messages[0].Role)
}

type aidRepo map[string]*tools.DecisionAid

func (r aidRepo) FindActiveBySlug(_ context.Context, slug string) (*tools.DecisionAid, error) {
	return r[slug], nil
}

type panicTool struct{}

func (panicTool) Definition() llm.ToolDefinition { return llm.ToolDefinition{Name: "explode"} }
func (panicTool) Execute(context.Context, map[string]interface{}) (interface{}, error) {
	panic("kaboom")
}

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry(
		tools.NewShowDecisionAid(aidRepo{"knee": {ID: "1", Slug: "knee", Title: "Knee", MediaURL: "https://cdn/knee.png", IsActive: true}}),
		panicTool{},
	)
	require.NoError(t, err)
	return reg
}

func TestExecuteTools(t *testing.T) {
	reply := llm.NewAIMessage("")
	reply.ToolCalls = []llm.ToolCall{
		{ID: "c1", Name: tools.ShowDecisionAidName, Arguments: map[string]interface{}{"aid_slug": "knee"}},
		{ID: "c2", Name: tools.ShowDecisionAidName, Arguments: map[string]interface{}{"aid_slug": "knee"}},
		{ID: "c3", Name: "teleport"},
		{ID: "c4", Name: "explode"},
	}
	state := stateWith(llm.NewHumanMessage("@llm show me"), reply)

	out, err := ExecuteTools(newRegistry(t), nop)(context.Background(), state, graph.RunConfig{ThreadID: "t"})
	require.NoError(t, err)

	toolMsgs := out.Messages[2:]
	require.Len(t, toolMsgs, 4)
	for i, m := range toolMsgs {
		assert.Equal(t, llm.RoleTool, m.Role)
		assert.Equal(t, reply.ToolCalls[i].ID, m.ToolCallID)
		assert.Equal(t, reply.ToolCalls[i].Name, m.Name)
	}

	var unknown toolFailure
	require.NoError(t, json.Unmarshal([]byte(toolMsgs[2].Content), &unknown))
	assert.False(t, unknown.Success)
	assert.Equal(t, "Unknown tool: teleport", unknown.Error)
	assert.Contains(t, toolMsgs[3].Content, "Tool explode failed: kaboom")

	require.Len(t, out.TurnDecisionAids, 1, "same aid twice is surfaced once")
	assert.Equal(t, "knee", out.TurnDecisionAids[0].AidSlug)
	assert.Equal(t, 1, out.ToolRounds)
}

func TestCallModelCapsToolRounds(t *testing.T) {
	provider := llmtest.NewProvider(llmtest.ToolCallReply("c1", tools.ShowDecisionAidName, nil))
	node := CallModel(provider, newRegistry(t), ModelConfig{MaxToolRounds: 2}, nop)

	state := stateWith(llm.NewHumanMessage("@llm hi"))
	state.ToolRounds = 2
	_, err := node(context.Background(), state, graph.RunConfig{ThreadID: "t"})
	assert.ErrorIs(t, err, graph.ErrToolLoopExceeded)
}

func TestCallModelStampsReply(t *testing.T) {
	provider := llmtest.NewProvider(llm.Message{Content: "Hi there"})
	node := CallModel(provider, newRegistry(t), ModelConfig{AssistantName: "Guide"}, nop)

	out, err := node(context.Background(), stateWith(llm.NewHumanMessage("@llm hi")), graph.RunConfig{ThreadID: "t"})
	require.NoError(t, err)

	last, _ := out.LastMessage()
	assert.Equal(t, llm.RoleAI, last.Role)
	assert.Equal(t, "Guide", last.Name)
	assert.NotEmpty(t, last.ID)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Options.Tools, 2)
	assert.Equal(t, graph.NodeExtractMemories, RouteAfterModel(out))
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return q.err
}

func TestExtractMemories(t *testing.T) {
	var msgs []llm.Message
	msgs = append(msgs, llm.NewSystemMessage("context"))
	for i := 0; i < 60; i++ {
		msgs = append(msgs, llm.NewHumanMessage(fmt.Sprintf("m%d", i)))
	}
	msgs = append(msgs, llm.NewAIMessage(""))
	state := stateWith(msgs...)

	t.Run("windowed job", func(t *testing.T) {
		q := &recordingQueue{}
		out, err := ExtractMemories(q, nop)(context.Background(), state, graph.RunConfig{ThreadID: "t", UserID: "u", JourneySlug: "knee"})
		require.NoError(t, err)
		assert.Equal(t, state, out)

		require.Len(t, q.jobs, 1)
		job := q.jobs[0].(jobs.ExtractionJob)
		assert.Equal(t, "u", job.UserID)
		assert.Equal(t, "knee", job.JourneySlug)
		// The last 50 messages include one empty AI message.
		require.Len(t, job.Messages, ExtractionWindow-1)
		assert.Equal(t, "m11", job.Messages[0].Content)
	})

	t.Run("no user", func(t *testing.T) {
		q := &recordingQueue{}
		_, err := ExtractMemories(q, nop)(context.Background(), state, graph.RunConfig{ThreadID: "t"})
		require.NoError(t, err)
		assert.Empty(t, q.jobs)
	})

	t.Run("queue failure does not fail the turn", func(t *testing.T) {
		q := &recordingQueue{err: errors.New("full")}
		_, err := ExtractMemories(q, nop)(context.Background(), state, graph.RunConfig{ThreadID: "t", UserID: "u"})
		assert.NoError(t, err)
	})
}
