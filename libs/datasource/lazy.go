package datasource

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Lazy builds a value on first use and then keeps it for the life of the
// process. Concurrent first callers share one build; a failed build is not
// remembered, so the next caller tries again.
type Lazy[T any] struct {
	build func(context.Context) (T, error)
	group singleflight.Group

	mu    sync.Mutex
	value T
	ready bool
}

func NewLazy[T any](build func(context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{build: build}
}

func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if v, ok := l.Peek(); ok {
		return v, nil
	}
	v, err, _ := l.group.Do("build", func() (any, error) {
		if v, ok := l.Peek(); ok {
			return v, nil
		}
		v, err := l.build(ctx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.value, l.ready = v, true
		l.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Peek returns the value only if it has already been built.
func (l *Lazy[T]) Peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.ready
}
