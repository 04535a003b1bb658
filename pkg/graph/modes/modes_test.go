package modes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/jobs"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/llm/llmtest"
	"sdm-platform-be/pkg/retrieval"
	"sdm-platform-be/pkg/tools"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRanker []retrieval.Citation

func (r staticRanker) Rank(context.Context, string, string) []retrieval.Citation { return r }

type aidRepo map[string]*tools.DecisionAid

func (r aidRepo) FindActiveBySlug(_ context.Context, slug string) (*tools.DecisionAid, error) {
	return r[slug], nil
}

type queue struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (q *queue) Enqueue(_ context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

type fixture struct {
	graph    *graph.CompiledGraph
	provider *llmtest.Provider
	queue    *queue
}

func build(t *testing.T, mode string, provider *llmtest.Provider) fixture {
	t.Helper()
	reg, err := tools.NewRegistry(tools.NewShowDecisionAid(aidRepo{
		"acl": {ID: "a1", Slug: "acl", Title: "ACL", MediaURL: "https://cdn/acl.png", IsActive: true},
	}))
	require.NoError(t, err)

	q := &queue{}
	g, err := NewRegistry().Build(mode, Deps{
		Provider:     provider,
		Tools:        reg,
		Ranker:       staticRanker{{Index: 1, Collection: "doc_a", DocumentID: "d1", Score: 0.2, Excerpt: "ACL facts"}},
		Queue:        q,
		Checkpointer: graph.NewMemoryCheckpointer(),
		Logger:       logger.NewNopLogger(),
	})
	require.NoError(t, err)
	return fixture{graph: g, provider: provider, queue: q}
}

func invoke(t *testing.T, f fixture, thread, content string) (*graph.Result, error) {
	t.Helper()
	return f.graph.Invoke(context.Background(),
		graph.Input{Messages: []llm.Message{llm.NewHumanMessage(content)}},
		graph.RunConfig{ThreadID: thread, UserID: "u1", JourneySlug: "knee"})
}

func TestAssistantModePaths(t *testing.T) {
	f := build(t, ModeAssistant, llmtest.NewProvider(llm.Message{Content: "The ACL stabilises the knee [1]."}))

	res, err := invoke(t, f, "t1", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{graph.NodeLoadContext, graph.NodeHumanTurn, graph.END}, res.Path)
	assert.Nil(t, res.Reply)
	assert.Empty(t, f.provider.Calls())

	res, err = invoke(t, f, "t1", "@llm what is the ACL?")
	require.NoError(t, err)
	want := []string{
		graph.NodeLoadContext, graph.NodeHumanTurn, graph.NodeRetrieveAndAugment,
		graph.NodeCallModel, graph.NodeExtractMemories, graph.END,
	}
	if diff := cmp.Diff(want, res.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, res.Reply)
	assert.Equal(t, "The ACL stabilises the knee [1].", res.Reply.Content)
	assert.Len(t, res.State.TurnCitations, 1)
	require.Len(t, f.queue.jobs, 1)

	// The model saw exactly one system message, at the head of the dialogue.
	history := f.provider.Calls()[0].History
	assert.Equal(t, llm.RoleSystem, history[0].Role)
	assert.Contains(t, history[0].Content, "ACL facts")
}

func TestAutonomousModeAnswersEveryMessage(t *testing.T) {
	f := build(t, ModeAutonomous, llmtest.NewProvider(llm.Message{Content: "Hi!"}))

	res, err := invoke(t, f, "t1", "hello")
	require.NoError(t, err)
	require.NotNil(t, res.Reply)
	assert.Equal(t, "Hi!", res.Reply.Content)
}

func TestToolRoundThenAnswer(t *testing.T) {
	f := build(t, ModeAssistant, llmtest.NewProvider(
		llmtest.ToolCallReply("c1", tools.ShowDecisionAidName, map[string]interface{}{"aid_slug": "acl"}),
		llm.Message{Content: "Here is the diagram."},
	))

	res, err := invoke(t, f, "t1", "@llm show me")
	require.NoError(t, err)
	assert.Contains(t, res.Path, graph.NodeExecuteTools)
	require.Len(t, res.State.TurnDecisionAids, 1)
	assert.Equal(t, "acl", res.State.TurnDecisionAids[0].AidSlug)
	require.NotNil(t, res.Reply)
	assert.Equal(t, "Here is the diagram.", res.Reply.Content)

	// Turn-scoped fields reset on the next turn.
	f.provider.Respond = func([]llm.Message, *llm.Options) (llm.Message, error) {
		return llm.Message{Content: "ok"}, nil
	}
	res, err = invoke(t, f, "t1", "@llm thanks")
	require.NoError(t, err)
	assert.Empty(t, res.State.TurnDecisionAids)
	assert.Zero(t, res.State.ToolRounds)
}

func TestToolLoopIsCapped(t *testing.T) {
	provider := llmtest.NewProvider()
	provider.Respond = func([]llm.Message, *llm.Options) (llm.Message, error) {
		return llmtest.ToolCallReply("", "teleport", nil), nil
	}
	f := build(t, ModeAssistant, provider)

	_, err := invoke(t, f, "t1", "@llm loop forever")
	assert.ErrorIs(t, err, graph.ErrToolLoopExceeded)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{ModeAssistant, ModeAutonomous}, r.Modes())

	_, err := r.Build("chaos", Deps{Provider: llmtest.NewProvider(), Checkpointer: graph.NewMemoryCheckpointer()})
	assert.ErrorIs(t, err, graph.ErrUnknownMode)
	assert.ErrorContains(t, err, "assistant, autonomous")

	_, err = r.Build(ModeAssistant, Deps{Checkpointer: graph.NewMemoryCheckpointer()})
	assert.Error(t, err)

	assert.Equal(t, ModeAutonomous, r.Resolve(" Autonomous ", nil))
	assert.Equal(t, DefaultMode, r.Resolve("chaos", logger.NewNopLogger()))
	assert.Equal(t, DefaultMode, r.Resolve("", nil))
}

func TestRetriedTurnAfterMidLoopFailure(t *testing.T) {
	for _, mode := range []string{ModeAssistant, ModeAutonomous} {
		t.Run(mode, func(t *testing.T) {
			provider := llmtest.NewProvider()
			calls := 0
			provider.Respond = func([]llm.Message, *llm.Options) (llm.Message, error) {
				calls++
				switch calls {
				case 1:
					return llmtest.ToolCallReply("c1", tools.ShowDecisionAidName, map[string]interface{}{"aid_slug": "acl"}), nil
				case 2:
					return llm.Message{}, errors.New("model timeout")
				case 3:
					return llmtest.ToolCallReply("c2", tools.ShowDecisionAidName, map[string]interface{}{"aid_slug": "acl"}), nil
				}
				return llm.Message{Content: "Here is the diagram."}, nil
			}
			f := build(t, mode, provider)

			human := llm.NewHumanMessage("@llm show me")
			input := graph.Input{Messages: []llm.Message{human}}
			cfg := graph.RunConfig{ThreadID: "t1", UserID: "u1", JourneySlug: "knee"}

			_, err := f.graph.Invoke(context.Background(), input, cfg)
			require.Error(t, err)

			res, err := f.graph.Invoke(context.Background(), input, cfg)
			require.NoError(t, err)
			assert.Contains(t, res.Path, graph.NodeCallModel)
			require.NotNil(t, res.Reply)
			assert.Equal(t, "Here is the diagram.", res.Reply.Content)
			assert.Len(t, res.State.TurnDecisionAids, 1)

			var toolMsgs, humans int
			for _, m := range res.State.Messages {
				switch m.Role {
				case llm.RoleTool:
					toolMsgs++
				case llm.RoleHuman:
					humans++
				}
			}
			assert.Equal(t, 1, toolMsgs, "first attempt's tool result is discarded")
			assert.Equal(t, 1, humans)
		})
	}
}

func TestRetriedTurnStillHitsToolLoopCap(t *testing.T) {
	provider := llmtest.NewProvider()
	provider.Respond = func([]llm.Message, *llm.Options) (llm.Message, error) {
		return llmtest.ToolCallReply("", "teleport", nil), nil
	}
	f := build(t, ModeAssistant, provider)

	input := graph.Input{Messages: []llm.Message{llm.NewHumanMessage("@llm loop forever")}}
	cfg := graph.RunConfig{ThreadID: "t1", UserID: "u1"}
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := f.graph.Invoke(context.Background(), input, cfg)
		assert.ErrorIs(t, err, graph.ErrToolLoopExceeded, "attempt %d", attempt)
	}
}
