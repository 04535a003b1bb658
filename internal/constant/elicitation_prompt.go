package constant

// Sections of the system prompt used when the assistant opens a conversation point.
const (
	ElicitationPointHeader     = "## Conversation Point: %s\n%s"
	ElicitationGoalsHeader     = "## Your Goals for This Discussion\nTry to learn the following from the patient:\n%s"
	ElicitationQuestionsHeader = "## Example Questions You Could Adapt\n%s"

	ElicitationKnownHeader = "## What You Already Know About This Topic"
	ElicitationKnownPoints = "Key points already discussed:"
	ElicitationKnownQuotes = "\nRelevant things the patient has said:"
	ElicitationKnownFooter = "\nBuild on this knowledge. Don't repeat questions about " +
		"things you already know. Focus on gaps and deeper exploration."

	ElicitationFirstTime = "## Context\n" +
		"This is the first time exploring this topic with the patient. " +
		"Start with open-ended questions to understand their situation."

	ElicitationTask = "## Your Task\n" +
		"The patient has clicked on this conversation topic, indicating " +
		"they want to discuss it now. " +
		"This is an intentional topic change - the patient is asking " +
		"to explore this area.\n\n" +
		"Your response should:\n" +
		"1. If there was a previous conversation happening, briefly " +
		"acknowledge it (1 sentence max) before transitioning to this new topic\n" +
		"2. Make it clear you're shifting to discuss what the patient " +
		"clicked on\n" +
		"3. Ask ONE thoughtful question that helps achieve your " +
		"elicitation goals\n\n" +
		"Be conversational and empathetic. Don't overwhelm with multiple " +
		"questions at once. " +
		"Focus entirely on the conversation point goals above."

	// ElicitationFocus is sent after the dialogue so it is the last thing the model reads.
	ElicitationFocus = "IMPORTANT: The patient has just clicked to discuss '%s'. " +
		"Your ONLY task right now is to ask a question about this specific topic. " +
		"Do NOT continue discussing previous topics unless absolutely necessary " +
		"for a brief transition. Focus your question on: %s."

	ElicitationDefaultFocus = "this conversation point"

	// ElicitationQuoteLimit caps how many patient quotes are replayed.
	ElicitationQuoteLimit = 3
	// ElicitationRecentMessages is how much recent dialogue accompanies the prompt.
	ElicitationRecentMessages = 3
)

// Message metadata written on assistant-initiated messages.
const (
	MetadataInitiatedPoint = "initiated_conversation_point"
	MetadataPointSlug      = "conversation_point_slug"
)
