package prompt

import (
	"fmt"
	"strings"

	"ai-helpdesk-be/pkg/llm"
	"ai-helpdesk-be/pkg/store"
)

const (
	DefaultSystemPrompt = "You are a professional customer service assistant. Answer the user's questions in a friendly and professional manner."

	// NoInformationReply is the sentence the model is told to use when the knowledge base does not cover a question
	NoInformationReply = "Sorry, no relevant information found."

	clarificationExcerptRunes = 200
	unknownSource             = "unknown"
)

// Generation builds the answer prompt for the state machine's Generate stage
func Generation(question, context string) string {
	var prompt strings.Builder

	if context != "" {
		prompt.WriteString("Answer the user's question based on the context below. ")
		prompt.WriteString("If the context does not contain the relevant information, say so explicitly.\n\n")
		prompt.WriteString("<context>\n")
		prompt.WriteString(context)
		prompt.WriteString("\n</context>\n\n")
		prompt.WriteString("<user_question>\n")
		prompt.WriteString(question)
		prompt.WriteString("\n</user_question>\n\n")
		prompt.WriteString("Provide an accurate and helpful answer:")
		return prompt.String()
	}

	prompt.WriteString("<user_question>\n")
	prompt.WriteString(question)
	prompt.WriteString("\n</user_question>\n\n")
	prompt.WriteString("Answer from your general knowledge. ")
	prompt.WriteString("If the question needs domain-specific knowledge you do not have, say that more information is needed.")
	return prompt.String()
}

// Clarification builds the prompt asking the model for a clarifying question
func Clarification(question, context string, confidence float64) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("User question: %s\n\n", question))

	if context == "" {
		prompt.WriteString(fmt.Sprintf("Current confidence: %.2f\n\n", confidence))
		prompt.WriteString("Write one friendly clarifying question that asks the user for more specifics so a more accurate answer can be given.")
		return prompt.String()
	}

	prompt.WriteString(fmt.Sprintf("Retrieved context: %s...\n\n", Excerpt(context, clarificationExcerptRunes)))
	prompt.WriteString(fmt.Sprintf("Current confidence: %.2f\n\n", confidence))
	prompt.WriteString("Write one clarifying question that confirms you understood the user correctly or offers to go into more detail.")
	return prompt.String()
}

// Excerpt returns at most n runes of s
func Excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// FormatContext renders passages as source-labelled blocks for the system message
func FormatContext(results []store.RetrievalResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		name := r.Filename()
		if name == "" {
			name = unknownSource
		}
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", name, r.Content))
	}
	return strings.Join(parts, "\n\n")
}

// JoinContents concatenates passage contents separated by blank lines
func JoinContents(results []store.RetrievalResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n\n")
}

// ChatBuilder assembles the outbound message sequence of one turn
type ChatBuilder struct {
	systemPrompt string
	maxHistory   int
}

// NewChatBuilder creates a builder that keeps the last maxHistory history entries
func NewChatBuilder(systemPrompt string, maxHistory int) *ChatBuilder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &ChatBuilder{systemPrompt: systemPrompt, maxHistory: maxHistory}
}

// Build returns system instruction, recent history, then the current user message
func (b *ChatBuilder) Build(userMessage, context string, useRAG bool, history []store.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: store.RoleSystem, Content: b.System(context, useRAG)})
	messages = append(messages, b.History(history)...)
	messages = append(messages, llm.Message{Role: store.RoleUser, Content: userMessage})
	return messages
}

// System returns the system instruction, with the knowledge block when context is in use
func (b *ChatBuilder) System(context string, useRAG bool) string {
	if !useRAG || context == "" {
		return b.systemPrompt
	}

	var prompt strings.Builder
	prompt.WriteString(b.systemPrompt)
	prompt.WriteString("\n\n=== Knowledge base ===\n")
	prompt.WriteString(context)
	prompt.WriteString("\n=== End of knowledge base ===\n\n")
	prompt.WriteString("Answer the user's question using the knowledge base above. ")
	prompt.WriteString(fmt.Sprintf("If it does not contain the relevant information, say \"%s\"", NoInformationReply))
	return prompt.String()
}

// History maps the last maxHistory stored entries to provider messages
func (b *ChatBuilder) History(history []store.Message) []llm.Message {
	if b.maxHistory >= 0 && len(history) > b.maxHistory {
		history = history[len(history)-b.maxHistory:]
	}
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
