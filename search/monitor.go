package search

import "github.com/poiesic/ragdesk/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query, workspaceID string)
	NoCollection(workspaceID string)
	AfterEmbedding(dimensions int)
	AfterQuery(matches []core.ChunkMatch)
	Truncated(from, to int)
	Finish(context string)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                 {}
func (n *noopMonitor) NoCollection(_ string)             {}
func (n *noopMonitor) AfterEmbedding(_ int)              {}
func (n *noopMonitor) AfterQuery(_ []core.ChunkMatch)    {}
func (n *noopMonitor) Truncated(_, _ int)                {}
func (n *noopMonitor) Finish(_ string)                   {}
