// Package chat answers workspace questions and runs the tools a message asks for.
//
// Orchestrator.Chat retrieves context for the message, asks the generator
// for a reply and classifies the message with a fixed keyword table to
// decide which tool, if any, to run. The model's reply is shown to the user
// as-is and never parsed for tool calls. Every turn is persisted.
//
// Classification, first match wins, case-insensitive:
//
//	"create task" or "task for"    create_task
//	"list tasks" or "my tasks"     list_tasks
//	"document" and "search"        search_documents
//	"recent documents"             list_recent_documents
package chat
