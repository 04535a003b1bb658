package entity

// Journey is the clinical topic a conversation runs under. Its system prompt is
// managed by the platform and copied onto each conversation at creation.
type Journey struct {
	Slug         string
	Name         string
	SystemPrompt string
	IsActive     bool
}
