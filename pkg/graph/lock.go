package graph

import (
	"context"
	"sync"
)

// ThreadLocker serialises turns on a thread. The returned release func is idempotent.
type ThreadLocker interface {
	Acquire(ctx context.Context, threadID string) (func(), error)
}

// LocalLocker is a keyed mutex for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

func (l *LocalLocker) Acquire(ctx context.Context, threadID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[threadID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[threadID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(threadID, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.unref(threadID, slot)
		})
	}, nil
}

func (l *LocalLocker) unref(threadID string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, threadID)
	}
}
