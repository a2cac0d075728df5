package gateway

import (
	"context"
	"errors"
	"sync"
)

// Lazy defers construction of a Provider until the first AI-backed call. A
// failed construction is retried on the next call.
type Lazy struct {
	build func(ctx context.Context) (Provider, error)

	mu       sync.RWMutex
	provider Provider
}

func NewLazy(build func(ctx context.Context) (Provider, error)) (*Lazy, error) {
	if build == nil {
		return nil, errors.New("gateway: provider constructor must not be nil")
	}
	return &Lazy{build: build}, nil
}

// Loaded reports whether the provider has been constructed.
func (l *Lazy) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.provider != nil
}

func (l *Lazy) Get(ctx context.Context) (Provider, error) {
	l.mu.RLock()
	if l.provider != nil {
		p := l.provider
		l.mu.RUnlock()
		return p, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.provider != nil {
		return l.provider, nil
	}
	p, err := l.build(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("gateway: provider constructor returned nil")
	}
	l.provider = p
	return p, nil
}
