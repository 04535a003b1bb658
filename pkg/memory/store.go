package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Memory types. Profile and insights live directly under the user; journey scoped
// types carry the journey slug as an extra namespace segment.
const (
	TypeProfile            = "profile"
	TypeInsights           = "insights"
	TypeJourney            = "journey"
	TypeConversationPoints = "conversation_points"
)

var (
	MemoryTypes        = []string{TypeProfile, TypeInsights}
	JourneyMemoryTypes = []string{TypeJourney, TypeConversationPoints}
)

// Namespace is a hierarchical key prefix, e.g. memory/users/<hash>/profile.
type Namespace []string

const namespaceSeparator = "."

var (
	segmentEscaper   = strings.NewReplacer("%", "%25", namespaceSeparator, "%2E")
	segmentUnescaper = strings.NewReplacer("%2E", namespaceSeparator, "%25", "%")
)

// String joins the segments with "."; a "." inside a segment is escaped so a
// journey slug like "knee.v2" never reads as a child of "knee".
func (n Namespace) String() string {
	parts := make([]string, len(n))
	for i, seg := range n {
		parts[i] = segmentEscaper.Replace(seg)
	}
	return strings.Join(parts, namespaceSeparator)
}

// HasPrefix reports whether n starts with every segment of prefix.
func (n Namespace) HasPrefix(prefix Namespace) bool {
	if len(prefix) > len(n) {
		return false
	}
	for i, seg := range prefix {
		if n[i] != seg {
			return false
		}
	}
	return true
}

// ParseNamespace is the inverse of Namespace.String.
func ParseNamespace(s string) Namespace {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, namespaceSeparator)
	for i, p := range parts {
		parts[i] = segmentUnescaper.Replace(p)
	}
	return Namespace(parts)
}

// EncodeUserID hashes a user id (often an email) into a namespace-safe segment.
func EncodeUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:16]
}

// UserNamespace builds the namespace for a memory type. journeySlug is only used by
// journey scoped types.
func UserNamespace(userID, memoryType, journeySlug string) Namespace {
	encoded := EncodeUserID(userID)
	switch memoryType {
	case TypeJourney:
		return Namespace{"memory", "users", encoded, "journeys", journeySlug}
	case TypeConversationPoints:
		return Namespace{"memory", "users", encoded, "conversation_points", journeySlug}
	default:
		return Namespace{"memory", "users", encoded, memoryType}
	}
}

type Item struct {
	Namespace Namespace
	Key       string
	Value     json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a namespaced key/value store. Get returns (nil, nil) for a missing key and
// Search returns every item whose namespace starts with the given prefix.
type Store interface {
	Get(ctx context.Context, ns Namespace, key string) (*Item, error)
	Put(ctx context.Context, ns Namespace, key string, value json.RawMessage) error
	Search(ctx context.Context, ns Namespace) ([]Item, error)
	Delete(ctx context.Context, ns Namespace, key string) error
}
