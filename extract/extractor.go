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

// Package extract turns uploaded file bytes into plain text.
//
// Extraction never fails a document: unsupported or unreadable input
// degrades to a short placeholder naming the file, so the document still
// produces one searchable chunk.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/poiesic/ragdesk/core"
)

// Result is the outcome of extracting one file.
type Result struct {
	Text     string
	Degraded bool  // Text is the placeholder rather than file content
	Err      error // Why extraction degraded; nil otherwise
}

// ExtractionError records which extractor failed for which file.
type ExtractionError struct {
	Filename string
	FileType string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Filename, e.FileType, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

var (
	// ErrUnsupportedType indicates no extractor handles the file type.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrToolNotFound indicates an external conversion tool is not installed.
	ErrToolNotFound = errors.New("pdftotext not found in PATH; install poppler-utils")
)

// Func extracts text from raw file content.
type Func func(ctx context.Context, content []byte) (string, error)

// Extractor dispatches on file type.
type Extractor struct {
	funcs  map[string]Func
	runner CommandRunner
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithCommandRunner replaces the runner used to invoke pdftotext.
func WithCommandRunner(runner CommandRunner) Option {
	return func(e *Extractor) {
		e.runner = runner
	}
}

// WithFunc registers fn for a file type, replacing any built-in handler.
func WithFunc(fileType string, fn Func) Option {
	return func(e *Extractor) {
		e.funcs[fileType] = fn
	}
}

// New creates an Extractor handling txt, md, html, pdf and docx.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		funcs:  make(map[string]Func),
		runner: execRunner{},
		logger: slog.Default(),
	}
	e.funcs["txt"] = extractText
	e.funcs["md"] = extractText
	e.funcs["markdown"] = extractText
	e.funcs["html"] = extractHTML
	e.funcs["htm"] = extractHTML
	e.funcs["pdf"] = e.extractPDF
	e.funcs["docx"] = extractDOCX

	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "extractor")
	return e
}

// Supports reports whether fileType has a registered extractor.
func (e *Extractor) Supports(fileType string) bool {
	_, ok := e.funcs[fileType]
	return ok
}

// Extract converts content to text according to the type of filename.
// Failures degrade to Placeholder(filename).
func (e *Extractor) Extract(ctx context.Context, filename string, content []byte) Result {
	fileType := core.FileTypeOf(filename)
	fn, ok := e.funcs[fileType]
	if !ok {
		return e.degrade(filename, fileType, ErrUnsupportedType)
	}

	text, err := fn(ctx, content)
	if err != nil {
		return e.degrade(filename, fileType, err)
	}
	return Result{Text: text}
}

func (e *Extractor) degrade(filename, fileType string, err error) Result {
	extractErr := &ExtractionError{Filename: filename, FileType: fileType, Err: err}
	e.logger.Warn("extraction degraded to placeholder", "file", filename, "type", fileType, "err", err)
	return Result{
		Text:     Placeholder(filename),
		Degraded: true,
		Err:      extractErr,
	}
}

// Placeholder is the text stored for files whose content cannot be extracted.
func Placeholder(filename string) string {
	return "File: " + filepath.Base(filename)
}
