package storage

import (
	"testing"
	"time"

	"github.com/poiesic/ragdesk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name string
		doc  *core.Document
	}{
		{
			name: "pending document",
			doc: &core.Document{
				ID:          "d1",
				WorkspaceID: "ws",
				UserID:      "u1",
				Filename:    "notes.txt",
				FilePath:    "/uploads/notes.txt",
				Size:        1234,
				FileType:    "txt",
				Status:      core.StatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		},
		{
			name: "failed document with metadata and deletion mark",
			doc: &core.Document{
				ID:           "d2",
				WorkspaceID:  "ws",
				UserID:       "u1",
				Filename:     "broken.pdf",
				FileType:     "pdf",
				Status:       core.StatusFailed,
				StatusReason: "embedding provider unavailable",
				ChunkCount:   0,
				Metadata:     map[string]string{"source": "upload", "lang": "en"},
				CreatedAt:    now,
				UpdatedAt:    now.Add(time.Second),
				DeletedAt:    now.Add(2 * time.Second),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalDocument(tt.doc)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalDocument(data)
			require.NoError(t, err)
			assert.Equal(t, tt.doc, decoded)
		})
	}
}

func TestMarshalUnmarshalTask(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	task := &core.Task{
		ID:              "t1",
		UserID:          "u1",
		Title:           "writing report",
		Description:     "From chat: create task for writing report",
		DueDate:         now.Add(24 * time.Hour),
		Priority:        core.PriorityMedium,
		Status:          core.TaskTodo,
		LinkedDocuments: []string{"d1", "d2"},
		CreatedByAI:     true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	decoded, err := UnmarshalTask(MarshalTask(task))
	require.NoError(t, err)
	assert.Equal(t, task, decoded)
}

func TestMarshalUnmarshalChatTurn(t *testing.T) {
	turn := &core.ChatTurn{
		ID:          "c1",
		UserID:      "u1",
		WorkspaceID: "ws",
		Message:     "list tasks",
		Response:    "Here you go",
		ToolsCalled: []string{"list_tasks"},
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalChatTurn(MarshalChatTurn(turn))
	require.NoError(t, err)
	assert.Equal(t, turn, decoded)
}

func TestMarshalUnmarshalChunk(t *testing.T) {
	chunk := &core.Chunk{
		ID:         "d1_3",
		DocumentID: "d1",
		Index:      3,
		Text:       "Natural Language Processing is a field of AI.",
		Vector:     []float32{0.25, -1.5, 0, 3.1415927},
		Metadata:   map[string]string{core.MetaDocumentID: "d1", core.MetaChunkIndex: "3"},
	}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestMarshalMetadata_Deterministic(t *testing.T) {
	a := &core.Chunk{ID: "x", Metadata: map[string]string{"a": "1", "b": "2", "c": "3"}}
	b := &core.Chunk{ID: "x", Metadata: map[string]string{"c": "3", "b": "2", "a": "1"}}
	assert.Equal(t, MarshalChunk(a), MarshalChunk(b))
}

func TestUnmarshal_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty data", []byte{}, ErrTruncatedData},
		{"wrong version", []byte{99, 0}, ErrUnsupportedVersion},
		{"truncated", MarshalDocument(&core.Document{ID: "d1", Filename: "a.txt"})[:4], nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDocument(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}
