package modes

import (
	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/graph/nodes"
	"sdm-platform-be/pkg/jobs"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/tools"
)

// Deps are the collaborators shared by every mode.
type Deps struct {
	Provider     llm.LLMProvider
	Tools        *tools.Registry
	Ranker       nodes.EvidenceRanker
	Profiles     nodes.ProfileReader
	Queue        jobs.Queue
	Checkpointer graph.Checkpointer
	Logger       logger.ILogger
	Model        nodes.ModelConfig
	Options      []graph.CompileOption
}

// buildTopology wires the conversation graph. Only the human_turn router differs per mode.
func buildTopology(router graph.RouteFunc, deps Deps) *graph.StateGraph {
	log := deps.Logger
	return graph.NewStateGraph().
		AddNode(graph.NodeLoadContext, nodes.LoadContext(deps.Profiles, log)).
		AddNode(graph.NodeHumanTurn, nodes.HumanTurn()).
		AddNode(graph.NodeRetrieveAndAugment, nodes.RetrieveAndAugment(deps.Ranker, log)).
		AddNode(graph.NodeCallModel, nodes.CallModel(deps.Provider, deps.Tools, deps.Model, log)).
		AddNode(graph.NodeExecuteTools, nodes.ExecuteTools(deps.Tools, log)).
		AddNode(graph.NodeExtractMemories, nodes.ExtractMemories(deps.Queue, log)).
		SetEntryPoint(graph.NodeLoadContext).
		AddEdge(graph.NodeLoadContext, graph.NodeHumanTurn).
		AddConditionalEdges(graph.NodeHumanTurn, router, map[string]string{
			graph.NodeRetrieveAndAugment: graph.NodeRetrieveAndAugment,
			graph.END:                    graph.END,
		}).
		AddEdge(graph.NodeRetrieveAndAugment, graph.NodeCallModel).
		AddConditionalEdges(graph.NodeCallModel, nodes.RouteAfterModel, map[string]string{
			graph.NodeExecuteTools:    graph.NodeExecuteTools,
			graph.NodeExtractMemories: graph.NodeExtractMemories,
		}).
		AddEdge(graph.NodeExecuteTools, graph.NodeCallModel).
		AddEdge(graph.NodeExtractMemories, graph.END)
}
