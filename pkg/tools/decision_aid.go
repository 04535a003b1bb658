package tools

import (
	"context"
	"fmt"
	"strings"

	"sdm-platform-be/pkg/llm"
)

const ShowDecisionAidName = "show_decision_aid"

const AidTypeExternalVideo = "external_video"

// DecisionAid is a displayable visual asset (image, video, diagram).
type DecisionAid struct {
	ID           string
	Slug         string
	AidType      string
	Title        string
	MediaURL     string
	ThumbnailURL string
	AltText      string
	IsActive     bool
}

// DecisionAidRepository finds active aids. A missing aid is (nil, nil).
type DecisionAidRepository interface {
	FindActiveBySlug(ctx context.Context, slug string) (*DecisionAid, error)
}

type DecisionAidResult struct {
	Success        bool    `json:"success"`
	AidID          string  `json:"aid_id,omitempty"`
	AidSlug        string  `json:"aid_slug,omitempty"`
	AidType        string  `json:"aid_type,omitempty"`
	Title          string  `json:"title,omitempty"`
	URL            string  `json:"url,omitempty"`
	ThumbnailURL   *string `json:"thumbnail_url,omitempty"`
	AltText        string  `json:"alt_text,omitempty"`
	ContextMessage string  `json:"context_message,omitempty"`
	Error          string  `json:"error,omitempty"`
}

type showDecisionAid struct {
	repo DecisionAidRepository
}

func NewShowDecisionAid(repo DecisionAidRepository) Tool {
	return &showDecisionAid{repo: repo}
}

func (t *showDecisionAid) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: ShowDecisionAidName,
		Description: "Display a visual aid (image, video, diagram) to help explain a concept. " +
			"Use it for anatomy, procedures, exercises or comparing healthy and affected anatomy. " +
			"Show one aid at a time and do not repeat an aid already shown in this conversation.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"aid_slug": map[string]interface{}{
					"type":        "string",
					"description": "The slug identifier of the decision aid to display.",
				},
				"context_message": map[string]interface{}{
					"type":        "string",
					"description": "Optional brief message to accompany the visual aid.",
				},
			},
			"required": []string{"aid_slug"},
		},
	}
}

func (t *showDecisionAid) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	slug, _ := args["aid_slug"].(string)
	contextMessage, _ := args["context_message"].(string)

	slug = strings.TrimSpace(slug)
	if slug == "" {
		return DecisionAidResult{Success: false, Error: "aid_slug is required"}, nil
	}

	aid, err := t.repo.FindActiveBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("find decision aid %s: %w", slug, err)
	}
	if aid == nil {
		return DecisionAidResult{
			Success: false,
			Error:   fmt.Sprintf("Decision aid '%s' not found or not active", slug),
		}, nil
	}

	url := aid.MediaURL
	if aid.AidType == AidTypeExternalVideo {
		url = EmbedURL(url)
	}

	var thumbnail *string
	if aid.ThumbnailURL != "" {
		thumb := aid.ThumbnailURL
		thumbnail = &thumb
	}

	altText := aid.AltText
	if altText == "" {
		altText = aid.Title
	}

	return DecisionAidResult{
		Success:        true,
		AidID:          aid.ID,
		AidSlug:        aid.Slug,
		AidType:        aid.AidType,
		Title:          aid.Title,
		URL:            url,
		ThumbnailURL:   thumbnail,
		AltText:        altText,
		ContextMessage: contextMessage,
	}, nil
}
