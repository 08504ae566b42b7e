package dialogue

import (
	"context"
	"fmt"
	"sync"
)

// Store provides access to dialogue content. Implementations must be safe
// for concurrent use.
type Store interface {
	// Graph returns the conversation of kind, or an error wrapping
	// [ErrNotFound].
	Graph(ctx context.Context, kind CharacterKind) (*Graph, error)

	// SaveGraph validates g and replaces the stored conversation of its
	// character.
	SaveGraph(ctx context.Context, g *Graph) error

	// PhrasePairs returns the phrase pairs for a mother/target language
	// pair, or an error wrapping [ErrNotFound].
	PhrasePairs(ctx context.Context, mother, target string) ([]PhrasePair, error)

	// SavePhrasePairs replaces the phrase pairs of a language pair.
	SavePhrasePairs(ctx context.Context, mother, target string, pairs []PhrasePair) error
}

type langPair struct{ mother, target string }

// MemStore is an in-memory [Store].
type MemStore struct {
	mu      sync.RWMutex
	graphs  map[CharacterKind]*Graph
	phrases map[langPair][]PhrasePair
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		graphs:  make(map[CharacterKind]*Graph),
		phrases: make(map[langPair][]PhrasePair),
	}
}

// Graph implements [Store].
func (s *MemStore) Graph(_ context.Context, kind CharacterKind) (*Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[kind]
	if !ok {
		return nil, fmt.Errorf("dialogue: graph for %s: %w", kind, ErrNotFound)
	}
	return g, nil
}

// SaveGraph implements [Store].
func (s *MemStore) SaveGraph(_ context.Context, g *Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[g.Character] = g
	return nil
}

// PhrasePairs implements [Store].
func (s *MemStore) PhrasePairs(_ context.Context, mother, target string) ([]PhrasePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pairs, ok := s.phrases[langPair{mother, target}]
	if !ok {
		return nil, fmt.Errorf("dialogue: phrase pairs %s->%s: %w", mother, target, ErrNotFound)
	}
	out := make([]PhrasePair, len(pairs))
	copy(out, pairs)
	return out, nil
}

// SavePhrasePairs implements [Store].
func (s *MemStore) SavePhrasePairs(_ context.Context, mother, target string, pairs []PhrasePair) error {
	cp := make([]PhrasePair, len(pairs))
	copy(cp, pairs)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phrases[langPair{mother, target}] = cp
	return nil
}
