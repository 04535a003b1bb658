package memory

import (
	"context"
	"fmt"

	"sdm-platform-be/pkg/graph"
)

// Locker serialises read-merge-write cycles on one memory document.
// graph.LocalLocker and the Redis lease both satisfy it.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type Option func(*managerOptions)

type managerOptions struct {
	locker Locker
}

// WithLocker shares document locks across processes. Without it the managers lock
// within the process only.
func WithLocker(l Locker) Option {
	return func(o *managerOptions) { o.locker = l }
}

func applyOptions(opts []Option) managerOptions {
	o := managerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = graph.NewLocalLocker()
	}
	return o
}

func documentKey(ns Namespace, key string) string {
	return ns.String() + "/" + key
}

// withDocument runs fn while holding the lock of (ns, key).
func withDocument(ctx context.Context, l Locker, ns Namespace, key string, fn func() error) error {
	release, err := l.Acquire(ctx, documentKey(ns, key))
	if err != nil {
		return fmt.Errorf("lock memory %s: %w", documentKey(ns, key), err)
	}
	defer release()
	return fn()
}
