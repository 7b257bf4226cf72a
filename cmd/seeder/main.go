// Command seeder fills a workspace with generated text documents for
// trying out search and chat.
package main

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/ragdesk"
	"github.com/poiesic/ragdesk/config"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/ingestion"
	"github.com/urfave/cli/v2"
)

var sentences = []string{
	"The quarterly budget review is scheduled for the first Monday of the month.",
	"Expense reports must be submitted within thirty days of purchase.",
	"The Berlin office moved to the third floor of the Hafen building.",
	"Remote staff should book meeting rooms through the facilities portal.",
	"Invoices above ten thousand euros need approval from two directors.",
	"The onboarding checklist covers laptops, badges and payroll forms.",
	"Security training is mandatory for every new employee in the first week.",
	"The support rotation changes every Friday at noon.",
	"Customer escalations go to the duty manager before engineering.",
	"Annual leave requests need two weeks of notice.",
	"The VPN certificate expires at the end of each calendar year.",
	"Vendor contracts are stored in the legal team's shared drive.",
	"Travel must be booked through the approved agency.",
	"The product roadmap is reviewed with sales every quarter.",
	"Release notes are published on the wiki after every deployment.",
	"The office closes early on the last Friday of December.",
	"Parking permits are renewed each April.",
	"The incident review template lists impact, timeline and follow-up actions.",
	"Hiring managers must complete interview training before their first panel.",
	"The finance team closes the books on the fifth business day.",
	"Laptop refreshes happen every three years.",
	"The data retention policy keeps audit logs for seven years.",
	"Conference budgets are allocated per team at the start of the year.",
	"Desk bookings can be cancelled up to an hour before the reservation.",
}

// linesFromFile returns an iterator over the non-empty lines of a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// seed groups source lines into documents of linesPerDoc lines, writes them
// under dir and ingests them into workspaceID. It returns the document ids.
func seed(ctx context.Context, svc *ragdesk.Service, workspaceID, dir string, source iter.Seq[string], linesPerDoc int) ([]string, error) {
	if linesPerDoc <= 0 {
		return nil, fmt.Errorf("lines per document must be positive, got %d", linesPerDoc)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var ids []string
	batch := make([]string, 0, linesPerDoc)
	flush := func() error {
		name := fmt.Sprintf("sample-%03d.txt", len(ids)+1)
		path := filepath.Join(dir, name)
		body := strings.Join(batch, "\n") + "\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return err
		}
		doc, err := svc.Ingest(ctx, ingestion.DocumentRef{
			WorkspaceID: workspaceID,
			UserID:      "seeder",
			Filename:    name,
			FilePath:    path,
			Size:        int64(len(body)),
			Metadata:    map[string]string{"source": "seeder"},
		})
		if err != nil {
			return err
		}
		ids = append(ids, doc.ID)
		batch = batch[:0]
		return nil
	}

	for line := range source {
		batch = append(batch, line)
		if len(batch) == linesPerDoc {
			if err := flush(); err != nil {
				return ids, err
			}
		}
	}

	// Remaining lines
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return ids, err
		}
	}

	svc.Wait()
	return ids, nil
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	workspaceID := c.String("workspace")
	if err := core.ValidateWorkspaceID(workspaceID); err != nil {
		return err
	}

	svc, err := ragdesk.Open(c.Context, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	source := linesFromSlice(sentences)
	if src := c.String("src"); src != "" {
		if source, err = linesFromFile(src); err != nil {
			return err
		}
	}

	dir := filepath.Join(cfg.DataDir, "uploads", workspaceID)
	ids, err := seed(c.Context, svc, workspaceID, dir, source, c.Int("lines"))
	if err != nil {
		return err
	}
	slog.Info("seeded workspace", "workspace_id", workspaceID, "documents", len(ids))
	return nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	app := &cli.App{
		Name:  "seeder",
		Usage: "Ingest generated sample documents into a workspace",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to config file"},
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Workspace id", Value: "demo"},
			&cli.StringFlag{Name: "src", Usage: "File of seed lines (default: built-in sentences)"},
			&cli.IntFlag{Name: "lines", Usage: "Lines per document", Value: 6},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
