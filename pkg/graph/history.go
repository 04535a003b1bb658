package graph

import (
	"time"

	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/retrieval"
	"sdm-platform-be/pkg/tools"
)

// HistoryEntry lists the messages first seen in one snapshot.
type HistoryEntry struct {
	CreatedAt        time.Time                 `json:"created_at"`
	NewMessages      []llm.Message             `json:"new_messages"`
	TurnCitations    []retrieval.Citation      `json:"turn_citations"`
	TurnDecisionAids []tools.DecisionAidResult `json:"turn_decision_aids"`
}

// DiffHistory walks snapshots oldest first and emits the messages each one introduced,
// together with the citations and decision aids current at that point.
func DiffHistory(snapshots []Snapshot) []HistoryEntry {
	seen := make(map[string]struct{})
	var entries []HistoryEntry
	for _, snap := range snapshots {
		var fresh []llm.Message
		for _, m := range snap.State.Messages {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			fresh = append(fresh, m)
		}
		if len(fresh) == 0 {
			continue
		}
		entries = append(entries, HistoryEntry{
			CreatedAt:        snap.CreatedAt,
			NewMessages:      fresh,
			TurnCitations:    snap.State.TurnCitations,
			TurnDecisionAids: snap.State.TurnDecisionAids,
		})
	}
	return entries
}
