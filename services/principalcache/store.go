// Package principalcache caches principal lookups made by the JWT filter.
package principalcache

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/example/cloud-tracker/models"
)

var errNilPrincipal = errors.New("cannot cache a nil principal")

// Loader loads principals from the source of truth
type Loader interface {
	LoadByIdentifier(ctx context.Context, identifier string) (*models.Principal, error)
}

// Backend stores principals by identifier
type Backend interface {
	// Get returns ok=false on a miss
	Get(ctx context.Context, identifier string) (p *models.Principal, ok bool, err error)
	Set(ctx context.Context, identifier string, p *models.Principal) error
	Delete(ctx context.Context, identifier string) error
}

// Store is a read-through cache in front of a Loader.
// Lookup failures, including not-found and nil principals, are never cached, and a failing
// backend degrades to calling the Loader directly.
type Store struct {
	next    Loader
	backend Backend
	logger  *zap.Logger
}

// New creates a new Store
func New(next Loader, backend Backend, logger *zap.Logger) *Store {
	return &Store{
		next:    next,
		backend: backend,
		logger:  logger,
	}
}

// LoadByIdentifier returns the cached principal or loads and caches it
func (s *Store) LoadByIdentifier(ctx context.Context, identifier string) (*models.Principal, error) {
	p, ok, err := s.backend.Get(ctx, identifier)
	if err != nil {
		s.logger.Warn("principal cache read failed", zap.Error(err))
	} else if ok {
		return clone(p), nil
	}

	p, err = s.next.LoadByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	if err := s.backend.Set(ctx, identifier, p); err != nil {
		s.logger.Warn("principal cache write failed", zap.Error(err))
	}
	return p, nil
}

// Invalidate drops the cached principal for identifier
func (s *Store) Invalidate(ctx context.Context, identifier string) error {
	return s.backend.Delete(ctx, identifier)
}

// clone returns a copy so callers cannot mutate cached state
func clone(p *models.Principal) *models.Principal {
	if p == nil {
		return nil
	}
	c := *p
	c.Authorities = append([]string(nil), p.Authorities...)
	return &c
}

func normalize(identifier string) string {
	return strings.ToLower(identifier)
}
