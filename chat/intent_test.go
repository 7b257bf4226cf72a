package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    Intent
	}{
		{"create task", "Please create task for writing report", Intent{Tool: ToolCreateTask, Title: "writing report"}},
		{"create task upper case", "CREATE TASK: Call the bank", Intent{Tool: ToolCreateTask, Title: "Call the bank"}},
		{"create task kelvin sign", "create tas\u212A for X", Intent{Tool: ToolCreateTask, Title: "X"}},
		{"task for", "Add a task for Bob - review the budget", Intent{Tool: ToolCreateTask, Title: "Bob - review the budget"}},
		{"create task without title", "create task", Intent{Tool: ToolCreateTask, Title: DefaultTaskTitle}},
		{"create task only separators", "create task for :", Intent{Tool: ToolCreateTask, Title: DefaultTaskTitle}},
		{"create beats list", "create task to list tasks", Intent{Tool: ToolCreateTask, Title: "to list tasks"}},
		{"list tasks", "Can you list tasks please", Intent{Tool: ToolListTasks}},
		{"my tasks", "What are my tasks today?", Intent{Tool: ToolListTasks}},
		{"list beats search", "search my tasks and documents", Intent{Tool: ToolListTasks}},
		{"search documents", "Search the documents for revenue", Intent{Tool: ToolSearchDocuments}},
		{"document without search", "Summarize this document", Intent{}},
		{"search beats recent", "search recent documents", Intent{Tool: ToolSearchDocuments}},
		{"recent documents", "Show me recent documents", Intent{Tool: ToolListRecentDocuments}},
		{"nothing", "What was Q3 revenue?", Intent{}},
		{"create without task", "Create a budget", Intent{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.message))
		})
	}
}

func TestTaskTitle(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"create task for writing report", "writing report"},
		{"create task format the docs", "format the docs"},
		{"create task forward the email", "forward the email"},
		{"create task - for: ship it", "ship it"},
		{"Create Task   Buy milk  ", "Buy milk"},
		{"a task for", DefaultTaskTitle},
		{"set up a task for Friday demo", "Friday demo"},
		{"create task for x and another task for y", "x and another task for y"},
		{"no trigger here", DefaultTaskTitle},
		{"create tas\u212A for X", "X"},
		{"\u212Aeep going, create task for \u212Aelvin review", "\u212Aelvin review"},
		{"İİ create task for audit", "audit"},
		{"héé create task: invoices", "invoices"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, TaskTitle(tt.message))
		})
	}
}

func TestLowerMapped(t *testing.T) {
	lower, ends := lowerMapped("A\u212AB")
	assert.Equal(t, "akb", lower)
	assert.Equal(t, []int{1, 4, 5}, ends)

	lower, ends = lowerMapped("x\xffY")
	assert.Equal(t, "x\ufffdy", lower)
	assert.Equal(t, []int{1, 2, 2, 2, 3}, ends)
}
