package llm

import "strings"

const (
	beginOfText = "<|begin_of_text|>"
	headerStart = "<|start_header_id|>"
	headerEnd   = "<|end_header_id|>"
	endOfTurn   = "<|eot_id|>"
)

var (
	stopMarkers = []string{endOfTurn, headerStart}

	// Small instruct models sometimes keep writing the next turn themselves.
	leakMarkers = []string{"\nUser:", "\nuser:", "\nAssistant:", "\nassistant:", "User:", "user:"}
)

// FormatLlama3 renders messages with the Llama 3 instruct chat template and
// leaves the prompt open on an assistant header.
func FormatLlama3(messages []Message) string {
	var b strings.Builder
	b.WriteString(beginOfText)
	for _, m := range messages {
		b.WriteString(headerStart)
		b.WriteString(string(m.Role))
		b.WriteString(headerEnd)
		b.WriteString("\n\n")
		b.WriteString(m.Content)
		b.WriteString(endOfTurn)
	}
	b.WriteString(headerStart)
	b.WriteString(string(RoleAssistant))
	b.WriteString(headerEnd)
	b.WriteString("\n\n")
	return b.String()
}

// StopMarkers lists the template tokens that end a completion.
func StopMarkers() []string {
	out := make([]string, len(stopMarkers))
	copy(out, stopMarkers)
	return out
}

// CleanCompletion cuts text at the first stop marker, then at the first
// leaked role header, and trims surrounding whitespace.
func CleanCompletion(text string) string {
	for _, marker := range stopMarkers {
		text = cutAt(text, marker)
	}
	for _, marker := range leakMarkers {
		text = cutAt(text, marker)
	}
	return strings.TrimSpace(text)
}

func cutAt(text, marker string) string {
	if i := strings.Index(text, marker); i >= 0 {
		return text[:i]
	}
	return text
}
