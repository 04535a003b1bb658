package dto

import (
	"time"

	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/retrieval"
	"sdm-platform-be/pkg/tools"
)

type SendMessageRequest struct {
	Message     string `json:"message" validate:"required,max=8000"`
	JourneySlug string `json:"journey_slug,omitempty" validate:"omitempty,max=100"`
}

type SendMessageResponse struct {
	ThreadId  string `json:"thread_id"`
	MessageId string `json:"message_id"`
	Status    string `json:"status"`
}

type InitiatePointRequest struct {
	JourneySlug string `json:"journey_slug" validate:"required,max=100"`
}

type InitiatePointResponse struct {
	ThreadId  string `json:"thread_id"`
	PointSlug string `json:"point_slug"`
	Status    string `json:"status"`
}

type MessageDTO struct {
	Id        string            `json:"id"`
	Role      string            `json:"role"`
	Name      string            `json:"name,omitempty"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// TurnReply is what a finished turn produced for the client.
type TurnReply struct {
	Message      MessageDTO                `json:"message"`
	Citations    []retrieval.Citation      `json:"citations"`
	DecisionAids []tools.DecisionAidResult `json:"decision_aids"`
}

type HistoryEntryResponse struct {
	CreatedAt        time.Time                 `json:"created_at"`
	Messages         []MessageDTO              `json:"messages"`
	TurnCitations    []retrieval.Citation      `json:"turn_citations"`
	TurnDecisionAids []tools.DecisionAidResult `json:"turn_decision_aids"`
}

type ForgetUserResponse struct {
	DeletedItems int `json:"deleted_items"`
}

func NewMessageDTO(m llm.Message) MessageDTO {
	return MessageDTO{
		Id:        m.ID,
		Role:      string(m.Role),
		Name:      m.Name,
		Content:   m.Content,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
	}
}

// NewHistoryResponse keeps only dialogue messages: system context and tool traffic
// are internal to a turn.
func NewHistoryResponse(entries []graph.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		var msgs []MessageDTO
		for _, m := range e.NewMessages {
			if m.Role == llm.RoleSystem || m.Role == llm.RoleTool || m.HasToolCalls() {
				continue
			}
			msgs = append(msgs, NewMessageDTO(m))
		}
		if len(msgs) == 0 {
			continue
		}
		out = append(out, HistoryEntryResponse{
			CreatedAt:        e.CreatedAt,
			Messages:         msgs,
			TurnCitations:    e.TurnCitations,
			TurnDecisionAids: e.TurnDecisionAids,
		})
	}
	return out
}
