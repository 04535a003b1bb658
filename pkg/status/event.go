package status

import "time"

const (
	TypeThinkingStart      = "thinking_start"
	TypeThinkingEnd        = "thinking_end"
	TypeThinkingProgress   = "thinking_progress"
	TypeExtractionStart    = "extraction_start"
	TypeExtractionComplete = "extraction_complete"
)

// Triggers reported with thinking_start.
const (
	TriggerUserMessage       = "user_message"
	TriggerConversationPoint = "conversation_point"
	TriggerAutonomous        = "autonomous"
)

// Event is a status update for the clients watching a thread.
type Event struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func newEvent(eventType string, data map[string]interface{}) Event {
	return Event{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

func ThinkingStart(trigger string) Event {
	return newEvent(TypeThinkingStart, map[string]interface{}{"trigger": trigger})
}

func ThinkingEnd() Event {
	return newEvent(TypeThinkingEnd, nil)
}

func ThinkingProgress(message string) Event {
	return newEvent(TypeThinkingProgress, map[string]interface{}{"message": message})
}

func ExtractionStart() Event {
	return newEvent(TypeExtractionStart, nil)
}

func ExtractionComplete(summaryTriggered bool) Event {
	return newEvent(TypeExtractionComplete, map[string]interface{}{"summary_triggered": summaryTriggered})
}

// Channel is the pub/sub channel of a thread.
func Channel(threadID string) string {
	return "status_" + threadID
}
