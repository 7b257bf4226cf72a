package core

import (
	"errors"
	"strings"
	"testing"
)

func validDocument() *Document {
	return &Document{
		ID:          "doc-1",
		WorkspaceID: "ws-1",
		UserID:      "user-1",
		Filename:    "notes.txt",
		Status:      StatusPending,
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Document)
		nilDoc  bool
		wantErr error
	}{
		{name: "valid document", mutate: func(*Document) {}},
		{name: "nil document", nilDoc: true, wantErr: ErrInvalidDocument},
		{name: "empty id", mutate: func(d *Document) { d.ID = "" }, wantErr: ErrEmptyID},
		{name: "empty user", mutate: func(d *Document) { d.UserID = "" }, wantErr: ErrEmptyUserID},
		{name: "empty filename", mutate: func(d *Document) { d.Filename = "" }, wantErr: ErrEmptyContent},
		{name: "bad workspace", mutate: func(d *Document) { d.WorkspaceID = "a/b" }, wantErr: ErrInvalidWorkspaceID},
		{name: "unknown status", mutate: func(d *Document) { d.Status = "archived" }, wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc *Document
			if !tt.nilDoc {
				doc = validDocument()
				tt.mutate(doc)
			}
			err := ValidateDocument(doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateDocument() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("ValidateDocument() error = %v, should wrap ErrInvalidDocument", err)
			}
		})
	}
}

func TestValidateWorkspaceID(t *testing.T) {
	valid := []string{"1", "ws_1", "6c2e1b1e-2f55-4a0b-9f55-0c1c3b8f2a11", strings.Repeat("a", MaxWorkspaceIDLength)}
	for _, id := range valid {
		if err := ValidateWorkspaceID(id); err != nil {
			t.Errorf("ValidateWorkspaceID(%q) unexpected error: %v", id, err)
		}
	}

	invalid := []string{"", "a b", "a:b", "ws/1", "é", strings.Repeat("a", MaxWorkspaceIDLength+1)}
	for _, id := range invalid {
		if err := ValidateWorkspaceID(id); !errors.Is(err, ErrInvalidWorkspaceID) {
			t.Errorf("ValidateWorkspaceID(%q) error = %v, want ErrInvalidWorkspaceID", id, err)
		}
	}
}

func TestValidateTask(t *testing.T) {
	base := func() *Task {
		task := &Task{ID: "t1", UserID: "u1", Title: "write report"}
		task.ApplyDefaults()
		return task
	}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr error
	}{
		{name: "valid", mutate: func(*Task) {}},
		{name: "missing id", mutate: func(tk *Task) { tk.ID = "" }, wantErr: ErrEmptyID},
		{name: "missing user", mutate: func(tk *Task) { tk.UserID = "" }, wantErr: ErrEmptyUserID},
		{name: "missing title", mutate: func(tk *Task) { tk.Title = "" }, wantErr: ErrEmptyContent},
		{name: "bad priority", mutate: func(tk *Task) { tk.Priority = "urgent" }, wantErr: ErrInvalidPriority},
		{name: "bad status", mutate: func(tk *Task) { tk.Status = "blocked" }, wantErr: ErrInvalidTaskStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := base()
			tt.mutate(task)
			err := ValidateTask(task)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateTask() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrInvalidTask) {
				t.Errorf("ValidateTask() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := ValidateTask(nil); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("ValidateTask(nil) error = %v", err)
	}
}

func TestValidateChatTurn(t *testing.T) {
	turn := &ChatTurn{ID: "c1", UserID: "u1", Message: "hello"}
	if err := ValidateChatTurn(turn); err != nil {
		t.Fatalf("ValidateChatTurn() unexpected error: %v", err)
	}

	turn.Message = ""
	if err := ValidateChatTurn(turn); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("ValidateChatTurn() error = %v, want ErrEmptyContent", err)
	}

	if err := ValidateChatTurn(nil); !errors.Is(err, ErrInvalidChatTurn) {
		t.Errorf("ValidateChatTurn(nil) error = %v", err)
	}
}
