package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sdm-platform-be/internal/model"
	"sdm-platform-be/internal/repository/specification"
	"sdm-platform-be/pkg/graph"

	"gorm.io/gorm"
)

// CheckpointRepositoryImpl stores graph snapshots in Postgres.
type CheckpointRepositoryImpl struct {
	db *gorm.DB
}

var _ graph.Checkpointer = (*CheckpointRepositoryImpl)(nil)

func NewCheckpointRepository(db *gorm.DB) *CheckpointRepositoryImpl {
	return &CheckpointRepositoryImpl{db: db}
}

func (r *CheckpointRepositoryImpl) Get(ctx context.Context, threadID string) (*graph.Snapshot, error) {
	var m model.Checkpoint
	query := specification.ByThreadID{ThreadID: threadID}.Apply(r.db.WithContext(ctx))
	query = specification.OrderBy{Field: "step", Desc: true}.Apply(query)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	snap, err := toSnapshot(&m)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Put appends the next step. The unique (thread_id, step) index rejects a concurrent
// writer that computed the same step.
func (r *CheckpointRepositoryImpl) Put(ctx context.Context, threadID string, state graph.State, node string) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint state: %w", err)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&model.Checkpoint{}).
			Where("thread_id = ?", threadID).
			Select("COALESCE(MAX(step), 0)").
			Scan(&last).Error; err != nil {
			return err
		}

		m := &model.Checkpoint{
			ThreadId: threadID,
			Step:     last + 1,
			Node:     node,
			State:    data,
		}
		if err := tx.Create(m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: concurrent checkpoint on thread %s", graph.ErrThreadBusy, threadID)
			}
			return err
		}
		return nil
	})
}

func (r *CheckpointRepositoryImpl) History(ctx context.Context, threadID string) ([]graph.Snapshot, error) {
	var models []*model.Checkpoint
	query := specification.ByThreadID{ThreadID: threadID}.Apply(r.db.WithContext(ctx))
	query = specification.OrderBy{Field: "step"}.Apply(query)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	snaps := make([]graph.Snapshot, 0, len(models))
	for _, m := range models {
		snap, err := toSnapshot(m)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (r *CheckpointRepositoryImpl) Delete(ctx context.Context, threadID string) error {
	return r.db.WithContext(ctx).Where("thread_id = ?", threadID).Delete(&model.Checkpoint{}).Error
}

func toSnapshot(m *model.Checkpoint) (graph.Snapshot, error) {
	var state graph.State
	if err := json.Unmarshal(m.State, &state); err != nil {
		return graph.Snapshot{}, fmt.Errorf("decode checkpoint %s/%d: %w", m.ThreadId, m.Step, err)
	}
	return graph.Snapshot{
		ThreadID:  m.ThreadId,
		Step:      m.Step,
		Node:      m.Node,
		State:     state,
		CreatedAt: m.CreatedAt,
	}, nil
}
