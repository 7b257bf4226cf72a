package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/ragdesk"
	"github.com/poiesic/ragdesk/config"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/ingestion"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
)

const pollInterval = 200 * time.Millisecond

var (
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
	noteColor  = color.New(color.FgYellow)
	replyColor = color.New(color.FgCyan)
	youColor   = color.New(color.FgGreen, color.Bold)
)

type runner struct {
	opts []ragdesk.Option
}

func (r *runner) open(c *cli.Context) (*ragdesk.Service, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	svc, err := ragdesk.Open(c.Context, cfg, r.opts...)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func (r *runner) ingest(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return errors.New("at least one file is required")
	}
	workspaceID := c.String("workspace")
	if err := core.ValidateWorkspaceID(workspaceID); err != nil {
		return err
	}

	svc, cfg, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	uploads := filepath.Join(cfg.DataDir, "uploads", workspaceID)
	if err := os.MkdirAll(uploads, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		id := core.NewID()
		name := filepath.Base(file)
		dst := filepath.Join(uploads, id+"_"+name)
		size, err := copyFile(file, dst)
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", file, err)
		}
		doc, err := svc.Ingest(c.Context, ingestion.DocumentRef{
			ID:          id,
			WorkspaceID: workspaceID,
			UserID:      c.String("user"),
			Filename:    name,
			FilePath:    dst,
			Size:        size,
		})
		if err != nil {
			os.Remove(dst)
			return fmt.Errorf("failed to ingest %s: %w", file, err)
		}
		ids = append(ids, doc.ID)
	}

	bar := newProgressBar(c.App.ErrWriter, len(ids), "Processing documents")
	docs, err := waitForDocuments(c.Context, svc, ids, bar)
	_ = bar.Finish()
	fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return err
	}

	failed := 0
	for _, doc := range docs {
		if doc.Status == core.StatusCompleted {
			okColor.Fprintf(c.App.Writer, "✓ %s  %s (%d chunks)\n", doc.ID, doc.Filename, doc.ChunkCount)
			continue
		}
		failed++
		errColor.Fprintf(c.App.Writer, "✗ %s  %s: %s\n", doc.ID, doc.Filename, doc.StatusReason)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(docs))
	}
	return nil
}

// waitForDocuments polls until every document reaches a terminal status.
// Documents are returned in the order of ids.
func waitForDocuments(ctx context.Context, svc *ragdesk.Service, ids []string, bar *progressbar.ProgressBar) ([]*core.Document, error) {
	docs := make([]*core.Document, len(ids))
	remaining := len(ids)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		for i, id := range ids {
			if docs[i] != nil {
				continue
			}
			doc, err := svc.Document(ctx, id)
			if err != nil {
				return nil, err
			}
			if doc.Status.Terminal() {
				docs[i] = doc
				remaining--
				_ = bar.Add(1)
			}
		}
		if remaining == 0 {
			return docs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return 0, err
	}
	return n, nil
}

func (r *runner) status(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("document id is required")
	}
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	doc, err := svc.Document(c.Context, id)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "ID:        %s\n", doc.ID)
	fmt.Fprintf(w, "Workspace: %s\n", doc.WorkspaceID)
	fmt.Fprintf(w, "File:      %s (%s, %d bytes)\n", doc.Filename, doc.FileType, doc.Size)
	fmt.Fprintf(w, "Status:    %s\n", doc.Status)
	if doc.StatusReason != "" {
		fmt.Fprintf(w, "Reason:    %s\n", doc.StatusReason)
	}
	fmt.Fprintf(w, "Chunks:    %d\n", doc.ChunkCount)
	fmt.Fprintf(w, "Uploaded:  %s\n", doc.CreatedAt.Format(time.RFC3339))
	return nil
}

func (r *runner) documents(c *cli.Context) error {
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	docs, err := svc.Documents(c.Context, c.String("workspace"), c.Int("limit"))
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		noteColor.Fprintln(c.App.Writer, "No documents")
		return nil
	}
	for _, doc := range docs {
		fmt.Fprintf(c.App.Writer, "%s  %-10s %5d  %s\n", doc.ID, doc.Status, doc.ChunkCount, doc.Filename)
	}
	return nil
}

func (r *runner) search(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("query is required")
	}
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	text, err := svc.Search(c.Context, query, c.String("workspace"), c.Int("limit"))
	if err != nil {
		return err
	}
	if text == "" {
		noteColor.Fprintln(c.App.Writer, "No matching passages")
		return nil
	}
	fmt.Fprintln(c.App.Writer, text)
	return nil
}

func (r *runner) chat(c *cli.Context) error {
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	workspaceID := c.String("workspace")
	userID := c.String("user")
	if message := strings.Join(c.Args().Slice(), " "); strings.TrimSpace(message) != "" {
		return sendMessage(c, svc, message, userID, workspaceID)
	}

	replyColor.Fprintf(c.App.Writer, "Chatting with workspace %s (type 'exit' to quit)\n", workspaceID)
	scanner := bufio.NewScanner(c.App.Reader)
	for {
		youColor.Fprint(c.App.Writer, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(c.App.Writer)
			return scanner.Err()
		}
		message := strings.TrimSpace(scanner.Text())
		switch {
		case message == "":
			continue
		case strings.EqualFold(message, "exit"), strings.EqualFold(message, "quit"):
			return nil
		}
		if err := sendMessage(c, svc, message, userID, workspaceID); err != nil {
			errColor.Fprintf(c.App.ErrWriter, "Error: %v\n", err)
		}
	}
}

func sendMessage(c *cli.Context, svc *ragdesk.Service, message, userID, workspaceID string) error {
	result, err := svc.Chat(c.Context, message, userID, workspaceID)
	if err != nil {
		return err
	}
	replyColor.Fprintf(c.App.Writer, "Assistant: %s\n", result.Response)
	if len(result.ToolsCalled) > 0 {
		noteColor.Fprintf(c.App.Writer, "[tools: %s]\n", strings.Join(result.ToolsCalled, ", "))
	}
	return nil
}

func (r *runner) delete(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("document id is required")
	}
	svc, _, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.DeleteDocument(c.Context, id); err != nil {
		return err
	}
	okColor.Fprintf(c.App.Writer, "Deleted %s\n", id)
	return nil
}

func (r *runner) reindex(c *cli.Context) error {
	svc, cfg, err := r.open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n\n", cfg.AI.EmbeddingModel)
	report, err := svc.Reindex(c.Context, c.String("workspace"), c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	okColor.Fprintf(c.App.Writer, "Reindexed %d documents (%d chunks)\n", report.Documents, report.Chunks)
	for _, id := range report.Failed {
		errColor.Fprintf(c.App.Writer, "✗ %s\n", id)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d documents could not be reindexed", len(report.Failed))
	}
	return nil
}
