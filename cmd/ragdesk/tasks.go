package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/ragdesk"
	"github.com/poiesic/ragdesk/core"
	"github.com/urfave/cli/v2"
)

func taskStatus(s string) (core.TaskStatus, error) {
	switch status := core.TaskStatus(strings.ToLower(s)); status {
	case "", core.TaskTodo, core.TaskInProgress, core.TaskDone:
		return status, nil
	}
	return "", fmt.Errorf("invalid status %q: must be one of todo, in_progress, done", s)
}

func taskPriority(s string) (core.TaskPriority, error) {
	switch priority := core.TaskPriority(strings.ToLower(s)); priority {
	case "", core.PriorityLow, core.PriorityMedium, core.PriorityHigh:
		return priority, nil
	}
	return "", fmt.Errorf("invalid priority %q: must be one of low, medium, high", s)
}

func statusFlag() cli.Flag {
	return &cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Task status (todo, in_progress, done)"}
}

func priorityFlag() cli.Flag {
	return &cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "Task priority (low, medium, high)"}
}

func taskCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:   "tasks",
		Usage:  "List a user's tasks, optionally by status or priority",
		Action: r.tasks,
		Flags:  []cli.Flag{userFlag(), limitFlag(), statusFlag(), priorityFlag()},
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a task",
				ArgsUsage: "TITLE",
				Action:    r.addTask,
				Flags: []cli.Flag{
					userFlag(),
					priorityFlag(),
					&cli.StringFlag{Name: "description", Usage: "Task description"},
				},
			},
			{
				Name:      "update",
				Usage:     "Change a task's title, status or priority",
				ArgsUsage: "TASK_ID",
				Action:    r.updateTask,
				Flags: []cli.Flag{
					userFlag(),
					statusFlag(),
					priorityFlag(),
					&cli.StringFlag{Name: "title", Usage: "New title"},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a task",
				ArgsUsage: "TASK_ID",
				Action:    r.deleteTask,
				Flags:     []cli.Flag{userFlag()},
			},
		},
	}
}

func printTask(c *cli.Context, task *core.Task) {
	marker := ""
	if task.CreatedByAI {
		marker = " (assistant)"
	}
	fmt.Fprintf(c.App.Writer, "%s  [%s/%s] %s%s\n", task.ID, task.Status, task.Priority, task.Title, marker)
}

func (r *runner) tasks(c *cli.Context) error {
	status, err := taskStatus(c.String("status"))
	if err != nil {
		return err
	}
	priority, err := taskPriority(c.String("priority"))
	if err != nil {
		return err
	}
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	tasks, err := svc.Tasks(c.Context, c.String("user"), ragdesk.TaskFilter{
		Status:   status,
		Priority: priority,
		Limit:    c.Int("limit"),
	})
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		noteColor.Fprintln(c.App.Writer, "No tasks")
		return nil
	}
	for _, task := range tasks {
		printTask(c, task)
	}
	return nil
}

func (r *runner) addTask(c *cli.Context) error {
	title := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if title == "" {
		return errors.New("task title is required")
	}
	priority, err := taskPriority(c.String("priority"))
	if err != nil {
		return err
	}
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	task, err := svc.AddTask(c.Context, &core.Task{
		UserID:      c.String("user"),
		Title:       title,
		Description: c.String("description"),
		Priority:    priority,
	})
	if err != nil {
		return err
	}
	okColor.Fprintf(c.App.Writer, "Created %s\n", task.ID)
	return nil
}

func (r *runner) updateTask(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("task id is required")
	}
	status, err := taskStatus(c.String("status"))
	if err != nil {
		return err
	}
	priority, err := taskPriority(c.String("priority"))
	if err != nil {
		return err
	}
	update := ragdesk.TaskUpdate{Title: c.String("title"), Status: status, Priority: priority}
	if update == (ragdesk.TaskUpdate{}) {
		return errors.New("nothing to update: pass --title, --status or --priority")
	}

	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	task, err := svc.UpdateTask(c.Context, c.String("user"), id, update)
	if err != nil {
		return err
	}
	printTask(c, task)
	return nil
}

func (r *runner) deleteTask(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("task id is required")
	}
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.DeleteTask(c.Context, c.String("user"), id); err != nil {
		return err
	}
	okColor.Fprintf(c.App.Writer, "Deleted task %s\n", id)
	return nil
}

func (r *runner) history(c *cli.Context) error {
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	userID := c.String("user")
	if id := c.Args().First(); id != "" {
		turn, err := svc.ChatTurn(c.Context, userID, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Chat:      %s\n", turn.ID)
		fmt.Fprintf(c.App.Writer, "Workspace: %s\n", turn.WorkspaceID)
		fmt.Fprintf(c.App.Writer, "Time:      %s\n", turn.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if len(turn.ToolsCalled) > 0 {
			fmt.Fprintf(c.App.Writer, "Tools:     %s\n", strings.Join(turn.ToolsCalled, ", "))
		}
		youColor.Fprintf(c.App.Writer, "\nYou: %s\n", turn.Message)
		replyColor.Fprintf(c.App.Writer, "Assistant: %s\n", turn.Response)
		return nil
	}

	turns, err := svc.ChatHistory(c.Context, userID, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		noteColor.Fprintln(c.App.Writer, "No chats")
		return nil
	}
	for _, turn := range turns {
		fmt.Fprintf(c.App.Writer, "%s  %s  %-10s %s\n", turn.ID, turn.CreatedAt.Local().Format("2006-01-02 15:04"), turn.WorkspaceID, firstLine(turn.Message, 60))
	}
	return nil
}

func firstLine(s string, width int) string {
	s, _, _ = strings.Cut(s, "\n")
	if r := []rune(s); len(r) > width {
		return string(r[:width-3]) + "..."
	}
	return s
}

func (r *runner) usage(c *cli.Context) error {
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	u, err := svc.Usage(c.Context, c.String("user"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Chats:          %d\n", u.Chats)
	fmt.Fprintf(c.App.Writer, "Tasks:          %d (%d open)\n", u.Tasks, u.OpenTasks)
	fmt.Fprintf(c.App.Writer, "Tasks by AI:    %d\n", u.TasksByAI)
	for _, tool := range slices.Sorted(maps.Keys(u.ToolsCalled)) {
		fmt.Fprintf(c.App.Writer, "  %-22s %d\n", tool, u.ToolsCalled[tool])
	}
	return nil
}

func (r *runner) health(c *cli.Context) error {
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	h := svc.Health(c.Context)
	for _, check := range h.Checks {
		if check.Err != nil {
			errColor.Fprintf(c.App.Writer, "✗ %-13s %v\n", check.Name, check.Err)
			continue
		}
		okColor.Fprintf(c.App.Writer, "✓ %-13s %s\n", check.Name, check.Elapsed.Round(time.Microsecond))
	}
	if !h.OK() {
		return errors.New("unhealthy")
	}
	return nil
}
