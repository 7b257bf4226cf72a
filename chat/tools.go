package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/ragdesk/core"
)

const (
	listTasksLimit     = 10
	recentDocsLimit    = 5
	maxSourceFilenames = 5
)

// toolRun carries what a tool needs from the turn.
type toolRun struct {
	message     string
	userID      string
	workspaceID string
	intent      Intent
	matches     []core.ChunkMatch
}

// runTool executes the tool of run.intent and returns text to append to the reply.
func (o *Orchestrator) runTool(ctx context.Context, run toolRun) (string, error) {
	switch run.intent.Tool {
	case ToolCreateTask:
		return o.createTask(ctx, run)
	case ToolListTasks:
		return o.listTasks(ctx, run)
	case ToolSearchDocuments:
		return searchSummary(run.matches), nil
	case ToolListRecentDocuments:
		return o.listRecentDocuments(ctx, run)
	}
	return "", fmt.Errorf("unknown tool %q", run.intent.Tool)
}

func (o *Orchestrator) createTask(ctx context.Context, run toolRun) (string, error) {
	task := &core.Task{
		ID:          core.NewID(),
		UserID:      run.userID,
		Title:       run.intent.Title,
		Description: "From chat: " + run.message,
		Priority:    core.PriorityMedium,
		Status:      core.TaskTodo,
		CreatedByAI: true,
	}
	added, err := o.tasks.AddTask(ctx, task)
	if err != nil {
		return "", err
	}
	o.logger.Info("created task from chat", "task_id", added.ID, "user_id", run.userID)
	return fmt.Sprintf("\n\nTask created: '%s'", added.Title), nil
}

func (o *Orchestrator) listTasks(ctx context.Context, run toolRun) (string, error) {
	tasks, err := o.tasks.ListTasks(ctx, run.userID, listTasksLimit)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "\n\nYou have no tasks.", nil
	}
	var b strings.Builder
	b.WriteString("\n\nYour tasks:")
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n- [%s] %s (%s)", t.Status, t.Title, t.Priority)
	}
	return b.String(), nil
}

func (o *Orchestrator) listRecentDocuments(ctx context.Context, run toolRun) (string, error) {
	docs, err := o.documents.ListDocuments(ctx, run.workspaceID, recentDocsLimit)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "\n\nNo documents have been uploaded to this workspace yet.", nil
	}
	var b strings.Builder
	b.WriteString("\n\nRecent documents:")
	for _, d := range docs {
		fmt.Fprintf(&b, "\n- %s (%s)", d.Filename, d.Status)
	}
	return b.String(), nil
}

// searchSummary reports how many passages matched and which files they came from.
func searchSummary(matches []core.ChunkMatch) string {
	if len(matches) == 0 {
		return "\n\nNo matching passages found in your documents."
	}
	var files []string
	for _, m := range matches {
		name := m.Metadata[core.MetaFilename]
		if name != "" && !slices.Contains(files, name) && len(files) < maxSourceFilenames {
			files = append(files, name)
		}
	}
	noun := "passages"
	if len(matches) == 1 {
		noun = "passage"
	}
	if len(files) == 0 {
		return fmt.Sprintf("\n\nFound %d matching %s.", len(matches), noun)
	}
	return fmt.Sprintf("\n\nFound %d matching %s in: %s", len(matches), noun, strings.Join(files, ", "))
}

// toolFailureNote is appended when a tool could not run.
func toolFailureNote(tool string) string {
	return fmt.Sprintf("\n\n(%s could not be completed.)", tool)
}
