package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragdesk/ai"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/search"
	"github.com/poiesic/ragdesk/storage"
)

// Retriever finds workspace passages for a query. *search.Searcher implements it.
type Retriever interface {
	Matches(ctx context.Context, query, workspaceID string, limit int) ([]core.ChunkMatch, error)
	Budget() int
}

// DocumentLister lists a workspace's documents, most recent first.
type DocumentLister interface {
	ListDocuments(ctx context.Context, workspaceID string, limit int) ([]*core.Document, error)
}

// Result is the outcome of one chat turn.
type Result struct {
	Response    string
	ToolsCalled []string
	ChatID      string
}

// Orchestrator runs chat turns.
type Orchestrator struct {
	retriever Retriever
	generator ai.Generator
	tasks     storage.TaskRepository
	chats     storage.ChatRepository
	documents DocumentLister
	limit     int
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithContextLimit sets how many chunks are retrieved per turn.
// Default is search.DefaultLimit.
func WithContextLimit(n int) Option {
	return func(o *Orchestrator) error {
		if n > 0 {
			o.limit = n
		}
		return nil
	}
}

// NewOrchestrator creates a new chat orchestrator.
func NewOrchestrator(
	retriever Retriever,
	generator ai.Generator,
	tasks storage.TaskRepository,
	chats storage.ChatRepository,
	documents DocumentLister,
	opts ...Option,
) (*Orchestrator, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if tasks == nil {
		return nil, ErrTaskRepositoryRequired
	}
	if chats == nil {
		return nil, ErrChatRepositoryRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	o := &Orchestrator{
		retriever: retriever,
		generator: generator,
		tasks:     tasks,
		chats:     chats,
		documents: documents,
		limit:     search.DefaultLimit,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "chat")
	return o, nil
}

// Chat answers message for userID within workspaceID.
//
// Retrieval and generation failures do not fail the call: the reply becomes
// Apology and no tool runs. Tools run only after a successful reply, and a
// tool is listed in ToolsCalled only if it succeeded. The only error after
// validation is a failure to persist the turn, wrapped in ErrPersistChat.
func (o *Orchestrator) Chat(ctx context.Context, message, userID, workspaceID string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	if err := core.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, err
	}
	logger := o.logger.With("user_id", userID, "workspace_id", workspaceID)

	response, model, matches, ok := o.reply(ctx, message, workspaceID, logger)
	tools := []string{}

	if ok {
		if intent := Classify(message); intent.Tool != "" {
			extra, err := o.runTool(ctx, toolRun{
				message:     message,
				userID:      userID,
				workspaceID: workspaceID,
				intent:      intent,
				matches:     matches,
			})
			if err != nil {
				logger.Error("tool failed", "tool", intent.Tool, "err", err)
				response += toolFailureNote(intent.Tool)
			} else {
				response += extra
				tools = append(tools, intent.Tool)
			}
		}
	}

	turn := &core.ChatTurn{
		ID:          core.NewID(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		Message:     message,
		Response:    response,
		ToolsCalled: tools,
	}
	if model != "" {
		turn.Metadata = map[string]string{"model": model}
	}
	saved, err := o.chats.AddChatTurn(ctx, turn)
	if err != nil {
		logger.Error("failed to persist chat turn", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistChat, err)
	}

	logger.Debug("chat turn complete", "chat_id", saved.ID, "tools", tools)
	return &Result{
		Response:    response,
		ToolsCalled: tools,
		ChatID:      saved.ID,
	}, nil
}

// reply retrieves context and generates the model's answer. ok is false
// when either step failed and the apology was substituted.
func (o *Orchestrator) reply(ctx context.Context, message, workspaceID string, logger *slog.Logger) (string, string, []core.ChunkMatch, bool) {
	matches, err := o.retriever.Matches(ctx, message, workspaceID, o.limit)
	if err != nil {
		logger.Warn("retrieval failed", "err", err)
		return Apology, "", nil, false
	}

	prompt := BuildPrompt(search.Join(matches), message, o.retriever.Budget())
	gen, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("generation failed", "err", err)
		return Apology, "", nil, false
	}
	return gen.Text, gen.Model, matches, true
}
