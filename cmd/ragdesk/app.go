package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/ragdesk"
	"github.com/poiesic/ragdesk/config"
	"github.com/urfave/cli/v2"
)

func workspaceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "workspace",
		Aliases:  []string{"w"},
		Usage:    "Workspace id",
		Required: true,
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User id",
		Value:   "cli",
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Maximum number of results (0 uses the default)",
	}
}

// newApp builds the command tree. opts are passed to every ragdesk.Open.
func newApp(opts ...ragdesk.Option) *cli.App {
	r := &runner{opts: opts}
	return &cli.App{
		Name:  "ragdesk",
		Usage: "Workspace document search and chat over local models",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: ragdesk.yaml or ~/.config/ragdesk/config.yaml)",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Override the configured data directory",
				EnvVars: []string{config.EnvDataDir},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Upload files into a workspace and wait for processing",
				ArgsUsage: "FILE...",
				Action:    r.ingest,
				Flags:     []cli.Flag{workspaceFlag(), userFlag()},
			},
			{
				Name:      "status",
				Usage:     "Show a document's processing status",
				ArgsUsage: "DOCUMENT_ID",
				Action:    r.status,
			},
			{
				Name:   "documents",
				Usage:  "List a workspace's documents",
				Action: r.documents,
				Flags:  []cli.Flag{workspaceFlag(), limitFlag()},
			},
			{
				Name:      "search",
				Usage:     "Print the workspace context retrieved for a query",
				ArgsUsage: "QUERY",
				Action:    r.search,
				Flags:     []cli.Flag{workspaceFlag(), limitFlag()},
			},
			{
				Name:      "chat",
				Usage:     "Chat with a workspace; interactive when no message is given",
				ArgsUsage: "[MESSAGE]",
				Action:    r.chat,
				Flags:     []cli.Flag{workspaceFlag(), userFlag()},
			},
			taskCommand(r),
			{
				Name:      "history",
				Usage:     "List a user's chats, or show one in full",
				ArgsUsage: "[CHAT_ID]",
				Action:    r.history,
				Flags:     []cli.Flag{userFlag(), limitFlag()},
			},
			{
				Name:   "usage",
				Usage:  "Summarize a user's chats and tasks",
				Action: r.usage,
				Flags:  []cli.Flag{userFlag()},
			},
			{
				Name:   "health",
				Usage:  "Check the database, vector store and model services",
				Action: r.health,
			},
			{
				Name:      "delete",
				Usage:     "Delete a document, its vectors and its stored file",
				ArgsUsage: "DOCUMENT_ID",
				Action:    r.delete,
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed a workspace's documents with the configured embedding model",
				Action: r.reindex,
				Flags:  []cli.Flag{workspaceFlag()},
			},
			{
				Name:  "config",
				Usage: "Configuration helpers",
				Subcommands: []*cli.Command{
					{
						Name:      "init",
						Usage:     "Write the default configuration",
						ArgsUsage: "[PATH]",
						Action:    configInit,
					},
					{
						Name:   "check",
						Usage:  "Load and validate the configuration",
						Action: configCheck,
					},
				},
			},
		},
	}
}

// loadConfig reads the configured file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func configInit(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = "ragdesk.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func configCheck(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	errs := cfg.Validate()
	for _, e := range errs {
		fmt.Fprintln(c.App.ErrWriter, e.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d configuration errors", len(errs))
	}
	fmt.Fprintln(c.App.Writer, "Configuration OK")
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
