package service

import (
	"fmt"
	"strings"

	"sdm-platform-be/internal/constant"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/memory"
)

// buildElicitationSections renders the conversation point guidance appended to the
// conversation's system prompt when the assistant opens a point.
func buildElicitationSections(point memory.ConversationPoint, known *memory.ConversationPointMemory) []string {
	sections := []string{fmt.Sprintf(constant.ElicitationPointHeader, point.Title, point.Description)}

	if len(point.ElicitationGoals) > 0 {
		sections = append(sections, fmt.Sprintf(constant.ElicitationGoalsHeader, bullets(point.ElicitationGoals)))
	}
	if len(point.ExampleQuestions) > 0 {
		sections = append(sections, fmt.Sprintf(constant.ElicitationQuestionsHeader, bullets(point.ExampleQuestions)))
	}

	if known != nil && (len(known.ExtractedPoints) > 0 || len(known.RelevantQuotes) > 0) {
		parts := []string{constant.ElicitationKnownHeader}
		if len(known.ExtractedPoints) > 0 {
			parts = append(parts, constant.ElicitationKnownPoints)
			for _, p := range known.ExtractedPoints {
				parts = append(parts, "- "+p)
			}
		}
		if len(known.RelevantQuotes) > 0 {
			parts = append(parts, constant.ElicitationKnownQuotes)
			quotes := known.RelevantQuotes
			if len(quotes) > constant.ElicitationQuoteLimit {
				quotes = quotes[:constant.ElicitationQuoteLimit]
			}
			for _, q := range quotes {
				parts = append(parts, `- "`+q+`"`)
			}
		}
		parts = append(parts, constant.ElicitationKnownFooter)
		sections = append(sections, strings.Join(parts, "\n"))
	} else {
		sections = append(sections, constant.ElicitationFirstTime)
	}

	return append(sections, constant.ElicitationTask)
}

func buildElicitationMessages(systemPrompt, userContext string, point memory.ConversationPoint, known *memory.ConversationPointMemory, history []llm.Message) []llm.Message {
	var parts []string
	if systemPrompt != "" {
		parts = append(parts, systemPrompt)
	}
	if userContext != "" {
		parts = append(parts, userContext)
	}
	parts = append(parts, buildElicitationSections(point, known)...)

	msgs := []llm.Message{llm.NewSystemMessage(strings.Join(parts, "\n\n"))}
	msgs = append(msgs, recentDialogue(history, constant.ElicitationRecentMessages)...)

	focus := constant.ElicitationDefaultFocus
	if len(point.ElicitationGoals) > 0 {
		goals := point.ElicitationGoals
		if len(goals) > 2 {
			goals = goals[:2]
		}
		focus = strings.Join(goals, ", ")
	}
	return append(msgs, llm.NewSystemMessage(fmt.Sprintf(constant.ElicitationFocus, point.Title, focus)))
}

// recentDialogue returns the last n human/assistant messages. Tool traffic is left out
// since a tool result without its originating call is rejected by providers.
func recentDialogue(history []llm.Message, n int) []llm.Message {
	var out []llm.Message
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		m := history[i]
		if m.Content == "" || (m.Role != llm.RoleHuman && m.Role != llm.RoleAI) || m.HasToolCalls() {
			continue
		}
		out = append(out, m)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}
