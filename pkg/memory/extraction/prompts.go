package extraction

import (
	"fmt"
	"strings"

	"sdm-platform-be/pkg/jobs"
	"sdm-platform-be/pkg/memory"
)

const profilePrompt = `Analyze this conversation and extract any new information about
the user.  Only extract information that the user has explicitly stated about
themselves.  Do NOT infer or guess information that wasn't directly stated.

Return a JSON object with any of these fields that you can confidently fill:
- name: User's full name (only if they explicitly stated it)
- preferred_name: How they prefer to be called (only if they explicitly stated it)
- birthday: Their birthday in YYYY-MM-DD format (only if they explicitly stated it)

Only include fields where you have HIGH CONFIDENCE from explicit user statements.
Return an empty object {} if no profile information was found.

Conversation:
%s

Return ONLY valid JSON, no other text.`

const profileInstruction = "Extract user profile information from the conversation above."

const pointsPrompt = `You are reviewing a conversation between a patient and a decision-support
assistant about %s. For each conversation point below, judge how well the patient has
already addressed it, using only what the patient explicitly said.

Conversation points:
%s

Return a JSON object keyed by conversation point slug. Each value is an object with:
- confidence: number between 0 and 1 of how thoroughly the point has been addressed
- extracted_points: short factual statements the patient made about the point
- relevant_quotes: verbatim patient quotes about the point
- structured_data: an object of any specific values the patient gave (timelines, ratings, names)

Omit points the conversation does not touch.

Conversation:
%s

Return ONLY valid JSON, no other text.`

const pointsInstruction = "Assess the conversation points from the conversation above."

// FormatConversation renders the window as "role: content" lines.
func FormatConversation(messages []jobs.ExtractionMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "unknown"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, m.Content))
	}
	return strings.Join(lines, "\n")
}

func buildProfilePrompt(conversation string) string {
	return fmt.Sprintf(profilePrompt, conversation)
}

func buildPointsPrompt(journeySlug string, points []memory.ConversationPoint, conversation string) string {
	var b strings.Builder
	for _, p := range points {
		fmt.Fprintf(&b, "- %s: %s", p.Slug, p.Title)
		if p.Description != "" {
			fmt.Fprintf(&b, ". %s", p.Description)
		}
		if len(p.ElicitationGoals) > 0 {
			fmt.Fprintf(&b, " Goals: %s.", strings.Join(p.ElicitationGoals, "; "))
		}
		b.WriteString("\n")
	}
	return fmt.Sprintf(pointsPrompt, journeySlug, strings.TrimRight(b.String(), "\n"), conversation)
}
