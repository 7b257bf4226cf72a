package chat

import (
	"fmt"
	"strings"

	"github.com/poiesic/ragdesk/search"
)

// NotAvailable is what the model is told to answer when the context lacks the information.
const NotAvailable = "This information is not available in your uploaded documents."

// Apology replaces the reply when retrieval or generation fails.
const Apology = "I'm here to help! You can ask me about your documents or create tasks."

// toolMenu is the tool list shown to the model, in order.
var toolMenu = []struct{ name, help string }{
	{ToolCreateTask, "Create a new task for the user"},
	{ToolListTasks, "List user's tasks"},
	{ToolSearchDocuments, "Search in user's documents"},
	{ToolListRecentDocuments, "List recently uploaded documents"},
	{ToolSummarizeDocuments, "Summarize selected documents"},
}

// BuildPrompt assembles the generation prompt from retrieved context,
// capped at budget characters, and the user's query.
func BuildPrompt(context, query string, budget int) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant for a workspace system. You have access to tools.\n\n")
	b.WriteString("Available tools:\n")
	for i, t := range toolMenu {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, t.name, t.help)
	}
	b.WriteString("\n")
	b.WriteString("Context from user's documents:\n")
	b.WriteString(search.Truncate(context, budget))
	b.WriteString("\n\nUser query: ")
	b.WriteString(query)
	b.WriteString("\n\nIf the query requires information not in the context, say: \"")
	b.WriteString(NotAvailable)
	b.WriteString("\"\n\n")
	b.WriteString("If the user asks to create a task, call create_task tool.\n")
	b.WriteString("If the user asks about their tasks, call list_tasks tool.\n")
	b.WriteString("If the user asks about documents, use search_documents or list_recent_documents.\n\n")
	b.WriteString("Respond naturally and helpfully.")
	return b.String()
}
