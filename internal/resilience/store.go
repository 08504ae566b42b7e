package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/glossa/internal/dialogue"
)

// Store guards a [dialogue.Store] with a [CircuitBreaker]. Lookups that
// miss with [dialogue.ErrNotFound] do not count as failures.
type Store struct {
	inner dialogue.Store
	cb    *CircuitBreaker
}

var _ dialogue.Store = (*Store)(nil)

// NewStore wraps inner. cfg.IsFailure is replaced so that missing content
// never trips the breaker.
func NewStore(inner dialogue.Store, cfg BreakerConfig) *Store {
	cfg.IsFailure = func(err error) bool {
		return !errors.Is(err, dialogue.ErrNotFound) && defaultIsFailure(err)
	}
	return &Store{inner: inner, cb: NewCircuitBreaker(cfg)}
}

// Breaker returns the breaker guarding the store.
func (s *Store) Breaker() *CircuitBreaker { return s.cb }

// Graph implements [dialogue.Store].
func (s *Store) Graph(ctx context.Context, kind dialogue.CharacterKind) (*dialogue.Graph, error) {
	var g *dialogue.Graph
	err := s.cb.Do(ctx, func(ctx context.Context) error {
		var err error
		g, err = s.inner.Graph(ctx, kind)
		return err
	})
	return g, err
}

// SaveGraph implements [dialogue.Store].
func (s *Store) SaveGraph(ctx context.Context, g *dialogue.Graph) error {
	return s.cb.Do(ctx, func(ctx context.Context) error {
		return s.inner.SaveGraph(ctx, g)
	})
}

// PhrasePairs implements [dialogue.Store].
func (s *Store) PhrasePairs(ctx context.Context, mother, target string) ([]dialogue.PhrasePair, error) {
	var pairs []dialogue.PhrasePair
	err := s.cb.Do(ctx, func(ctx context.Context) error {
		var err error
		pairs, err = s.inner.PhrasePairs(ctx, mother, target)
		return err
	})
	return pairs, err
}

// SavePhrasePairs implements [dialogue.Store].
func (s *Store) SavePhrasePairs(ctx context.Context, mother, target string, pairs []dialogue.PhrasePair) error {
	return s.cb.Do(ctx, func(ctx context.Context) error {
		return s.inner.SavePhrasePairs(ctx, mother, target, pairs)
	})
}
