package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sdm-platform-be/internal/pkg/logger"
)

const pointKeyPrefix = "point_"

func PointKey(pointSlug string) string {
	return pointKeyPrefix + pointSlug
}

// PointCatalog lists the conversation points configured for a journey.
type PointCatalog interface {
	ListActive(ctx context.Context, journeySlug string) ([]ConversationPoint, error)
	GetActive(ctx context.Context, journeySlug, pointSlug string) (*ConversationPoint, error)
}

// PointManager stores conversation point memories. Updates are monotonic: confidence
// never decreases, facts accumulate and an addressed point stays addressed.
type PointManager struct {
	store  Store
	locker Locker
	logger logger.ILogger
	now    func() time.Time
}

func NewPointManager(store Store, log logger.ILogger, opts ...Option) *PointManager {
	return &PointManager{
		store:  store,
		locker: applyOptions(opts).locker,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *PointManager) Get(ctx context.Context, userID, journeySlug, pointSlug string) (*ConversationPointMemory, error) {
	ns := UserNamespace(userID, TypeConversationPoints, journeySlug)
	item, err := m.store.Get(ctx, ns, PointKey(pointSlug))
	if err != nil {
		return nil, fmt.Errorf("get point memory: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	var mem ConversationPointMemory
	if err := json.Unmarshal(item.Value, &mem); err != nil {
		return nil, fmt.Errorf("decode point memory %s: %w", pointSlug, err)
	}
	return &mem, nil
}

// List returns every point memory of a journey. Undecodable entries are skipped.
func (m *PointManager) List(ctx context.Context, userID, journeySlug string) ([]ConversationPointMemory, error) {
	ns := UserNamespace(userID, TypeConversationPoints, journeySlug)
	items, err := m.store.Search(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("search point memories: %w", err)
	}

	memories := make([]ConversationPointMemory, 0, len(items))
	for _, item := range items {
		if !strings.HasPrefix(item.Key, pointKeyPrefix) {
			continue
		}
		var mem ConversationPointMemory
		if err := json.Unmarshal(item.Value, &mem); err != nil {
			m.logger.Warn(moduleName, "Failed to parse point memory", map[string]interface{}{
				"key":   item.Key,
				"error": err.Error(),
			})
			continue
		}
		memories = append(memories, mem)
	}
	return memories, nil
}

// Update merges an observation into the stored memory. Concurrent updates of the
// same point are applied one after another.
func (m *PointManager) Update(ctx context.Context, userID, journeySlug, pointSlug string, update PointUpdate) (*ConversationPointMemory, error) {
	var merged ConversationPointMemory
	ns := UserNamespace(userID, TypeConversationPoints, journeySlug)
	err := withDocument(ctx, m.locker, ns, PointKey(pointSlug), func() error {
		var err error
		merged, err = m.merge(ctx, userID, journeySlug, pointSlug, update)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info(moduleName, "Updated conversation point memory", map[string]interface{}{
		"user":       EncodeUserID(userID),
		"journey":    journeySlug,
		"point":      pointSlug,
		"confidence": merged.ConfidenceScore,
		"addressed":  merged.IsAddressed,
	})
	return &merged, nil
}

func (m *PointManager) merge(ctx context.Context, userID, journeySlug, pointSlug string, update PointUpdate) (ConversationPointMemory, error) {
	current, err := m.Get(ctx, userID, journeySlug, pointSlug)
	if err != nil {
		return ConversationPointMemory{}, err
	}
	if current == nil {
		current = &ConversationPointMemory{
			ConversationPointSlug: pointSlug,
			JourneySlug:           journeySlug,
		}
	}

	merged := MergePoint(*current, update, m.now())
	if err := validate.Struct(merged); err != nil {
		return ConversationPointMemory{}, fmt.Errorf("invalid point memory: %w", err)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return ConversationPointMemory{}, err
	}
	ns := UserNamespace(userID, TypeConversationPoints, journeySlug)
	if err := m.store.Put(ctx, ns, PointKey(pointSlug), data); err != nil {
		return ConversationPointMemory{}, fmt.Errorf("put point memory: %w", err)
	}
	return merged, nil
}

// MarkInitiated records that the user explicitly opened a conversation point.
func (m *PointManager) MarkInitiated(ctx context.Context, userID, journeySlug, pointSlug string) (*ConversationPointMemory, error) {
	initiated := true
	return m.Update(ctx, userID, journeySlug, pointSlug, PointUpdate{ManuallyInitiated: &initiated})
}

// MergePoint applies the monotonic merge policy.
func MergePoint(current ConversationPointMemory, update PointUpdate, now time.Time) ConversationPointMemory {
	out := current

	if update.ConfidenceScore != nil {
		score := clamp01(*update.ConfidenceScore)
		if score > out.ConfidenceScore {
			out.ConfidenceScore = score
		}
	}

	out.ExtractedPoints = union(current.ExtractedPoints, update.ExtractedPoints)
	out.RelevantQuotes = union(current.RelevantQuotes, update.RelevantQuotes)

	if len(update.StructuredData) > 0 {
		data := make(map[string]interface{}, len(current.StructuredData)+len(update.StructuredData))
		for k, v := range current.StructuredData {
			data[k] = v
		}
		for k, v := range update.StructuredData {
			if v != nil {
				data[k] = v
			}
		}
		out.StructuredData = data
	}

	if update.IsAddressed != nil && *update.IsAddressed && !out.IsAddressed {
		out.IsAddressed = true
	}
	if out.IsAddressed && out.FirstAddressedAt == nil {
		first := now
		out.FirstAddressedAt = &first
	}

	if update.MessageCountAnalyzed != nil && *update.MessageCountAnalyzed > out.MessageCountAnalyzed {
		out.MessageCountAnalyzed = *update.MessageCountAnalyzed
	}

	if update.ManuallyInitiated != nil && *update.ManuallyInitiated {
		out.ManuallyInitiated = true
		initiatedAt := now
		out.InitiatedAt = &initiatedAt
	}

	out.LastAnalyzedAt = now
	return out
}

// IsJourneyComplete reports whether every active point has been addressed.
// A journey without points is never complete.
func IsJourneyComplete(points []ConversationPoint, memories []ConversationPointMemory) bool {
	addressed := make(map[string]bool, len(memories))
	for _, mem := range memories {
		addressed[mem.ConversationPointSlug] = mem.IsAddressed
	}

	active := 0
	for _, p := range points {
		if !p.IsActive {
			continue
		}
		active++
		if !addressed[p.Slug] {
			return false
		}
	}
	return active > 0
}

func union(existing, incoming []string) []string {
	out := make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
