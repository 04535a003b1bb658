package retrieval

import "strings"

// GlobalInstructions are prepended to every turn-context system message.
const GlobalInstructions = "Do not share external video links (e.g., YouTube) as sources may be " +
	"unreliable or broken. Focus on text-based explanations and retrieved evidence."

const evidenceHeader = "RETRIEVED EVIDENCE (for reference when answering). Each block includes a " +
	"short excerpt and a citation (e.g., [1], [2])."

const evidenceFooter = "When answering, cite the corresponding evidence blocks (e.g., [1], [2]) if used."

// BuildContextPrompt assembles the turn-context system prompt. The boolean is false
// when there is neither a system prompt, a user context nor evidence, in which case
// no system message should be added.
func BuildContextPrompt(systemPrompt, userContext string, citations []Citation) (string, bool) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userContext = strings.TrimSpace(userContext)
	if systemPrompt == "" && userContext == "" && len(citations) == 0 {
		return "", false
	}

	parts := []string{GlobalInstructions}
	if systemPrompt != "" {
		parts = append(parts, systemPrompt)
	}
	if userContext != "" {
		parts = append(parts, userContext)
	}
	if len(citations) > 0 {
		blocks := make([]string, len(citations))
		for i, c := range citations {
			blocks[i] = c.EvidenceBlock()
		}
		parts = append(parts, evidenceHeader+"\n\n"+strings.Join(blocks, "\n\n")+"\n\n"+evidenceFooter)
	}
	return strings.Join(parts, "\n\n"), true
}
