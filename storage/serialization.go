// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragdesk/core"
)

// Record format versions. Bump when a field is added.
const (
	documentVersion byte = 1
	taskVersion     byte = 1
	chatTurnVersion byte = 1
	chunkVersion    byte = 1
)

// serializer is the subset of the mus-go serializer interface used here.
type serializer[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) (size int)
}

type writer struct {
	bs []byte
}

func put[T any](w *writer, s serializer[T], v T) {
	start := len(w.bs)
	w.bs = append(w.bs, make([]byte, s.Size(v))...)
	s.Marshal(v, w.bs[start:])
}

func (w *writer) version(v byte) { w.bs = append(w.bs, v) }
func (w *writer) str(v string) { put(w, ord.String, v) }
func (w *writer) int(v int) { put(w, varint.Int, v) }
func (w *writer) int64(v int64) { put(w, varint.Int64, v) }
func (w *writer) bool(v bool) { put(w, ord.Bool, v) }

// time is stored as Unix microseconds; the zero time is stored as 0.
func (w *writer) time(v time.Time) {
	if v.IsZero() {
		w.int64(0)
		return
	}
	w.int64(v.UnixMicro())
}

func (w *writer) strs(v []string) {
	w.int(len(v))
	for _, s := range v {
		w.str(s)
	}
}

// Map keys are written sorted so equal maps encode identically.
func (w *writer) meta(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.int(len(keys))
	for _, k := range keys {
		w.str(k)
		w.str(m[k])
	}
}

func (w *writer) vector(v []float32) {
	w.int(len(v))
	for _, f := range v {
		put(w, varint.Uint32, math.Float32bits(f))
	}
}

type reader struct {
	bs  []byte
	err error
}

func get[T any](r *reader, s serializer[T]) T {
	var zero T
	if r.err != nil {
		return zero
	}
	if len(r.bs) == 0 {
		r.err = ErrTruncatedData
		return zero
	}
	v, n, err := s.Unmarshal(r.bs)
	if err != nil {
		r.err = err
		return zero
	}
	r.bs = r.bs[n:]
	return v
}

func (r *reader) version(want byte) {
	if r.err != nil {
		return
	}
	if len(r.bs) == 0 {
		r.err = ErrTruncatedData
		return
	}
	if r.bs[0] != want {
		r.err = fmt.Errorf("%w: %d", ErrUnsupportedVersion, r.bs[0])
		return
	}
	r.bs = r.bs[1:]
}

func (r *reader) str() string { return get(r, ord.String) }
func (r *reader) int64() int64 { return get(r, varint.Int64) }
func (r *reader) bool() bool { return get(r, ord.Bool) }

func (r *reader) int() int {
	v := get(r, varint.Int)
	if v < 0 && r.err == nil {
		r.err = fmt.Errorf("negative length %d", v)
	}
	return v
}

// count reads a collection length and rejects lengths larger than the
// remaining input, which would otherwise allocate without bound.
func (r *reader) count() int {
	n := r.int()
	if r.err == nil && n > len(r.bs) {
		r.err = ErrTruncatedData
		return 0
	}
	return n
}

func (r *reader) time() time.Time {
	v := r.int64()
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func (r *reader) strs() []string {
	n := r.count()
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.str())
	}
	return out
}

func (r *reader) meta() map[string]string {
	n := r.count()
	if n == 0 {
		return nil
	}
	out := make(map[string]string, n)
	for i := 0; i < n && r.err == nil; i++ {
		k := r.str()
		out[k] = r.str()
	}
	return out
}

func (r *reader) vector() []float32 {
	n := r.count()
	if n == 0 {
		return nil
	}
	out := make([]float32, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, math.Float32frombits(get(r, varint.Uint32)))
	}
	return out
}

func (r *reader) done() error {
	if r.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, r.err)
	}
	return nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	w := &writer{}
	w.version(documentVersion)
	w.str(doc.ID)
	w.str(doc.WorkspaceID)
	w.str(doc.UserID)
	w.str(doc.Filename)
	w.str(doc.FilePath)
	w.int64(doc.Size)
	w.str(doc.FileType)
	w.str(string(doc.Status))
	w.str(doc.StatusReason)
	w.int(doc.ChunkCount)
	w.meta(doc.Metadata)
	w.time(doc.CreatedAt)
	w.time(doc.UpdatedAt)
	w.time(doc.DeletedAt)
	return w.bs
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	r := &reader{bs: data}
	r.version(documentVersion)
	doc := &core.Document{
		ID:           r.str(),
		WorkspaceID:  r.str(),
		UserID:       r.str(),
		Filename:     r.str(),
		FilePath:     r.str(),
		Size:         r.int64(),
		FileType:     r.str(),
		Status:       core.DocumentStatus(r.str()),
		StatusReason: r.str(),
		ChunkCount:   r.int(),
		Metadata:     r.meta(),
		CreatedAt:    r.time(),
		UpdatedAt:    r.time(),
		DeletedAt:    r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarshalTask serializes a Task to bytes.
func MarshalTask(task *core.Task) []byte {
	w := &writer{}
	w.version(taskVersion)
	w.str(task.ID)
	w.str(task.UserID)
	w.str(task.Title)
	w.str(task.Description)
	w.time(task.DueDate)
	w.str(string(task.Priority))
	w.str(string(task.Status))
	w.strs(task.LinkedDocuments)
	w.bool(task.CreatedByAI)
	w.time(task.CreatedAt)
	w.time(task.UpdatedAt)
	return w.bs
}

// UnmarshalTask deserializes a Task from bytes.
func UnmarshalTask(data []byte) (*core.Task, error) {
	r := &reader{bs: data}
	r.version(taskVersion)
	task := &core.Task{
		ID:              r.str(),
		UserID:          r.str(),
		Title:           r.str(),
		Description:     r.str(),
		DueDate:         r.time(),
		Priority:        core.TaskPriority(r.str()),
		Status:          core.TaskStatus(r.str()),
		LinkedDocuments: r.strs(),
		CreatedByAI:     r.bool(),
		CreatedAt:       r.time(),
		UpdatedAt:       r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return task, nil
}

// MarshalChatTurn serializes a ChatTurn to bytes.
func MarshalChatTurn(turn *core.ChatTurn) []byte {
	w := &writer{}
	w.version(chatTurnVersion)
	w.str(turn.ID)
	w.str(turn.UserID)
	w.str(turn.WorkspaceID)
	w.str(turn.Message)
	w.str(turn.Response)
	w.strs(turn.ToolsCalled)
	w.meta(turn.Metadata)
	w.time(turn.CreatedAt)
	return w.bs
}

// UnmarshalChatTurn deserializes a ChatTurn from bytes.
func UnmarshalChatTurn(data []byte) (*core.ChatTurn, error) {
	r := &reader{bs: data}
	r.version(chatTurnVersion)
	turn := &core.ChatTurn{
		ID:          r.str(),
		UserID:      r.str(),
		WorkspaceID: r.str(),
		Message:     r.str(),
		Response:    r.str(),
		ToolsCalled: r.strs(),
		Metadata:    r.meta(),
		CreatedAt:   r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return turn, nil
}

// MarshalChunk serializes a vector Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	w := &writer{}
	w.version(chunkVersion)
	w.str(chunk.ID)
	w.str(chunk.DocumentID)
	w.int(chunk.Index)
	w.str(chunk.Text)
	w.vector(chunk.Vector)
	w.meta(chunk.Metadata)
	return w.bs
}

// UnmarshalChunk deserializes a vector Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	r := &reader{bs: data}
	r.version(chunkVersion)
	chunk := &core.Chunk{
		ID:         r.str(),
		DocumentID: r.str(),
		Index:      r.int(),
		Text:       r.str(),
		Vector:     r.vector(),
		Metadata:   r.meta(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return chunk, nil
}
