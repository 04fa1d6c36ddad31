package pipeline

import (
	"path/filepath"
	"sync"

	"github.com/armon/go-radix"
)

// processedSet tracks files already handled by an earlier job so that
// overlapping wildcard expansions do not rewrite the same file twice.
// Backed by a radix tree, which keeps the shared-prefix bulk of absolute
// media paths cheap.
type processedSet struct {
	mu   sync.Mutex
	tree *radix.Tree
}

func newProcessedSet() *processedSet {
	return &processedSet{tree: radix.New()}
}

func (s *processedSet) key(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// Add records path and reports whether it was new.
func (s *processedSet) Add(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.tree.Insert(s.key(path), struct{}{})
	return !existed
}

func (s *processedSet) Contains(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tree.Get(s.key(path))
	return ok
}

func (s *processedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}
