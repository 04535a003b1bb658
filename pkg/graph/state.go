package graph

import (
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/retrieval"
	"sdm-platform-be/pkg/tools"
)

// END is the terminal routing target.
const END = "END"

// Node names of the conversation topology.
const (
	NodeLoadContext        = "load_context"
	NodeHumanTurn          = "human_turn"
	NodeRetrieveAndAugment = "retrieve_and_augment"
	NodeCallModel          = "call_model"
	NodeExecuteTools       = "execute_tools"
	NodeExtractMemories    = "extract_memories"
)

// MetadataTurnContext marks the system message rebuilt by retrieval on every turn.
const MetadataTurnContext = "turn_context"

// State is the unit the graph operates on. It is checkpointed after every node.
type State struct {
	Messages         []llm.Message             `json:"messages"`
	NextState        string                    `json:"next_state"`
	UserContext      string                    `json:"user_context"`
	SystemPrompt     string                    `json:"system_prompt"`
	TurnCitations    []retrieval.Citation      `json:"turn_citations"`
	TurnDecisionAids []tools.DecisionAidResult `json:"turn_decision_aids"`
	ToolRounds       int                       `json:"tool_rounds"`
}

// RunConfig carries per-invocation identity. It is not persisted.
type RunConfig struct {
	ThreadID    string
	UserID      string
	JourneySlug string
}

// Input is what a caller contributes to a new turn.
type Input struct {
	Messages []llm.Message
	// SystemPrompt replaces the checkpointed prompt when non-empty.
	SystemPrompt string
}

// Clone copies every slice so a node can modify the result freely.
func (s State) Clone() State {
	out := s
	out.Messages = append([]llm.Message(nil), s.Messages...)
	out.TurnCitations = append([]retrieval.Citation(nil), s.TurnCitations...)
	out.TurnDecisionAids = append([]tools.DecisionAidResult(nil), s.TurnDecisionAids...)
	return out
}

// AddMessages merges by ID: known IDs are replaced in place, new ones appended.
func (s *State) AddMessages(msgs ...llm.Message) {
	if len(msgs) == 0 {
		return
	}
	pos := make(map[string]int, len(s.Messages))
	for i, m := range s.Messages {
		pos[m.ID] = i
	}
	for _, m := range msgs {
		if i, ok := pos[m.ID]; ok && m.ID != "" {
			s.Messages[i] = m
			continue
		}
		pos[m.ID] = len(s.Messages)
		s.Messages = append(s.Messages, m)
	}
}

func (s State) LastMessage() (llm.Message, bool) {
	if len(s.Messages) == 0 {
		return llm.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastHumanMessage returns the most recent human message with content.
func (s State) LastHumanMessage() (llm.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == llm.RoleHuman && m.Content != "" {
			return m, true
		}
	}
	return llm.Message{}, false
}

// rewind drops the earliest message whose ID is among msgs and everything after it.
// It reports how many messages were dropped.
func (s *State) rewind(msgs []llm.Message) int {
	ids := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.ID != "" {
			ids[m.ID] = struct{}{}
		}
	}
	for i, m := range s.Messages {
		if _, ok := ids[m.ID]; ok {
			dropped := len(s.Messages) - i
			s.Messages = s.Messages[:i]
			return dropped
		}
	}
	return 0
}

// beginTurn resets turn-scoped fields and merges the caller's input. Input that is
// already in the thread (a redelivered job) replays the turn from that message, so
// partial work of the failed attempt is discarded. It returns the dropped count.
func (s *State) beginTurn(in Input) int {
	dropped := s.rewind(in.Messages)
	s.NextState = ""
	s.TurnCitations = nil
	s.TurnDecisionAids = nil
	s.ToolRounds = 0
	if in.SystemPrompt != "" {
		s.SystemPrompt = in.SystemPrompt
	}
	s.AddMessages(in.Messages...)
	return dropped
}
