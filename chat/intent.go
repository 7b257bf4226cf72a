package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tool names reported in Result.ToolsCalled.
const (
	ToolCreateTask          = "create_task"
	ToolListTasks           = "list_tasks"
	ToolSearchDocuments     = "search_documents"
	ToolListRecentDocuments = "list_recent_documents"

	// ToolSummarizeDocuments is offered in the prompt's tool menu only.
	// No message classifies to it, so it never appears in ToolsCalled.
	ToolSummarizeDocuments = "summarize_documents"
)

// DefaultTaskTitle is used when a create-task message names no title.
const DefaultTaskTitle = "Task from AI"

// Intent is the tool a message asks for. Tool is empty when none matched.
type Intent struct {
	Tool  string
	Title string // Task title; set only for ToolCreateTask
}

var createTriggers = []string{"create task", "task for"}

// Classify maps message to at most one tool.
func Classify(message string) Intent {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, createTriggers...):
		return Intent{Tool: ToolCreateTask, Title: TaskTitle(message)}
	case containsAny(lower, "list tasks", "my tasks"):
		return Intent{Tool: ToolListTasks}
	case strings.Contains(lower, "document") && strings.Contains(lower, "search"):
		return Intent{Tool: ToolSearchDocuments}
	case strings.Contains(lower, "recent documents"):
		return Intent{Tool: ToolListRecentDocuments}
	}
	return Intent{}
}

// TaskTitle extracts the title of a create-task message: the text after
// the first trigger present, without a leading "for", ":" or "-".
//
//	"Please create task for writing report" -> "writing report"
func TaskTitle(message string) string {
	lower, ends := lowerMapped(message)
	for _, trigger := range createTriggers {
		i := strings.Index(lower, trigger)
		if i < 0 {
			continue
		}
		title := stripLead(message[ends[i+len(trigger)-1]:])
		if title == "" {
			return DefaultTaskTitle
		}
		return title
	}
	return DefaultTaskTitle
}

// lowerMapped lowercases s rune by rune. ends[j] is the offset in s just
// past the rune that produced byte j of the result, so positions found in
// the lowered text can be carried back to s even when case mapping changes
// a rune's encoded length.
func lowerMapped(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	ends := make([]int, 0, len(s))
	for i, r := range s {
		_, size := utf8.DecodeRuneInString(s[i:])
		n, _ := b.WriteRune(unicode.ToLower(r))
		for range n {
			ends = append(ends, i+size)
		}
	}
	return b.String(), ends
}

// stripLead trims space and any run of leading "for", ":" and "-".
func stripLead(s string) string {
	for {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, ":"), strings.HasPrefix(s, "-"):
			s = s[1:]
		case len(s) >= 3 && strings.EqualFold(s[:3], "for") && (len(s) == 3 || !isWordRune(rune(s[3]))):
			s = s[3:]
		default:
			return s
		}
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
