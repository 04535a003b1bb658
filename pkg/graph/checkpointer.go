package graph

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Snapshot is one durable checkpoint of a thread.
type Snapshot struct {
	ThreadID  string    `json:"thread_id"`
	Step      int       `json:"step"`
	Node      string    `json:"node"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Checkpointer persists turn state per thread. Get returns (nil, nil) for an unknown thread
// and History returns snapshots oldest first.
type Checkpointer interface {
	Get(ctx context.Context, threadID string) (*Snapshot, error)
	Put(ctx context.Context, threadID string, state State, node string) error
	History(ctx context.Context, threadID string) ([]Snapshot, error)
	Delete(ctx context.Context, threadID string) error
}

// Node labels for snapshots written outside node execution.
const (
	SnapshotInput       = "input"
	SnapshotUpdateState = "update_state"
)

// MemoryCheckpointer keeps snapshots in process. States are stored as JSON so callers
// can never alias checkpointed data.
type MemoryCheckpointer struct {
	mu      sync.RWMutex
	threads map[string][]storedSnapshot
	now     func() time.Time
}

type storedSnapshot struct {
	step      int
	node      string
	state     []byte
	createdAt time.Time
}

func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{
		threads: make(map[string][]storedSnapshot),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *MemoryCheckpointer) Get(ctx context.Context, threadID string) (*Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snaps := c.threads[threadID]
	if len(snaps) == 0 {
		return nil, nil
	}
	snap, err := decodeSnapshot(threadID, snaps[len(snaps)-1])
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *MemoryCheckpointer) Put(ctx context.Context, threadID string, state State, node string) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	snaps := c.threads[threadID]
	c.threads[threadID] = append(snaps, storedSnapshot{
		step:      len(snaps) + 1,
		node:      node,
		state:     data,
		createdAt: c.now(),
	})
	return nil
}

func (c *MemoryCheckpointer) History(ctx context.Context, threadID string) ([]Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stored := c.threads[threadID]
	out := make([]Snapshot, 0, len(stored))
	for _, s := range stored {
		snap, err := decodeSnapshot(threadID, s)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (c *MemoryCheckpointer) Delete(ctx context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.threads, threadID)
	return nil
}

func decodeSnapshot(threadID string, s storedSnapshot) (Snapshot, error) {
	var state State
	if err := json.Unmarshal(s.state, &state); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ThreadID:  threadID,
		Step:      s.step,
		Node:      s.node,
		State:     state,
		CreatedAt: s.createdAt,
	}, nil
}
