package search

import "github.com/poiesic/contentloader/storage"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimension int)
	AfterVectorSearch(results []storage.SearchResult)
	VerbatimHit(result Result)
	Finish(results []Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                             {}
func (n *noopMonitor) AfterEmbedding(_ int)                       {}
func (n *noopMonitor) AfterVectorSearch(_ []storage.SearchResult) {}
func (n *noopMonitor) VerbatimHit(_ Result)                       {}
func (n *noopMonitor) Finish(_ []Result)                          {}
