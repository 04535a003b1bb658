package memory

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	SourceUserInput     = "user_input"
	SourceLLMExtraction = "llm_extraction"
	SourceSystem        = "system"
)

const dateLayout = "2006-01-02"

// Date is a calendar date serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UserProfile is the single profile document per user.
type UserProfile struct {
	Name          *string   `json:"name,omitempty"`
	PreferredName *string   `json:"preferred_name,omitempty"`
	Birthday      *Date     `json:"birthday,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
	Source        string    `json:"source" validate:"oneof=user_input llm_extraction system"`
}

// ProfileUpdate holds the fields to merge. Nil fields leave stored values untouched.
type ProfileUpdate struct {
	Name          *string
	PreferredName *string
	Birthday      *Date
}

func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.PreferredName == nil && u.Birthday == nil
}

// ConversationPointMemory is what has been learned about one conversation point.
type ConversationPointMemory struct {
	ConversationPointSlug string                 `json:"conversation_point_slug" validate:"required"`
	JourneySlug           string                 `json:"journey_slug" validate:"required"`
	IsAddressed           bool                   `json:"is_addressed"`
	ConfidenceScore       float64                `json:"confidence_score" validate:"gte=0,lte=1"`
	ExtractedPoints       []string               `json:"extracted_points"`
	RelevantQuotes        []string               `json:"relevant_quotes"`
	StructuredData        map[string]interface{} `json:"structured_data"`
	FirstAddressedAt      *time.Time             `json:"first_addressed_at,omitempty"`
	LastAnalyzedAt        time.Time              `json:"last_analyzed_at"`
	MessageCountAnalyzed  int                    `json:"message_count_analyzed" validate:"gte=0"`
	ManuallyInitiated     bool                   `json:"manually_initiated,omitempty"`
	InitiatedAt           *time.Time             `json:"initiated_at,omitempty"`
}

// PointUpdate is a single extraction observation for a conversation point.
type PointUpdate struct {
	IsAddressed          *bool
	ConfidenceScore      *float64
	ExtractedPoints      []string
	RelevantQuotes       []string
	StructuredData       map[string]interface{}
	MessageCountAnalyzed *int
	ManuallyInitiated    *bool
}

// ConversationPoint is a topic a journey expects to be discussed.
type ConversationPoint struct {
	Slug                string
	JourneySlug         string
	Title               string
	Description         string
	ElicitationGoals    []string
	ExampleQuestions    []string
	SemanticKeywords    []string
	ConfidenceThreshold float64
	SortOrder           int
	IsActive            bool
}
