package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildContextPrompt(t *testing.T) {
	cite := Citation{Index: 1, Collection: "doc_a", DocumentID: "d1", Score: 0.2, Excerpt: "Rest helps."}

	t.Run("nothing to add", func(t *testing.T) {
		_, ok := BuildContextPrompt("  ", "", nil)
		assert.False(t, ok)
	})

	t.Run("section order", func(t *testing.T) {
		got, ok := BuildContextPrompt("You are a guide.", "USER CONTEXT", []Citation{cite})
		assert.True(t, ok)

		parts := []string{GlobalInstructions, "You are a guide.", "USER CONTEXT", evidenceHeader, cite.EvidenceBlock(), evidenceFooter}
		last := -1
		for _, p := range parts {
			i := strings.Index(got, p)
			assert.Greater(t, i, last, "expected %q after previous section", p)
			last = i
		}
	})

	t.Run("evidence only", func(t *testing.T) {
		got, ok := BuildContextPrompt("", "", []Citation{cite})
		assert.True(t, ok)
		assert.True(t, strings.HasPrefix(got, GlobalInstructions+"\n\n"+evidenceHeader))
	})
}

func TestJourneyFilter(t *testing.T) {
	assert.Nil(t, JourneyFilter(""))
	assert.Equal(t, []string{"is_universal", "journey_hip"}, JourneyFilter("hip").AnyOf)
}
