package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sdm-platform-be/internal/pkg/logger"

	"github.com/go-playground/validator/v10"
)

const moduleName = "memory"

// ProfileKey is the single key of the profile document.
const ProfileKey = "profile"

var validate = validator.New()

// ProfileManager reads and merges the per-user profile document.
type ProfileManager struct {
	store  Store
	locker Locker
	logger logger.ILogger
	now    func() time.Time
}

func NewProfileManager(store Store, log logger.ILogger, opts ...Option) *ProfileManager {
	return &ProfileManager{
		store:  store,
		locker: applyOptions(opts).locker,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the stored profile or nil when the user has none.
func (m *ProfileManager) Get(ctx context.Context, userID string) (*UserProfile, error) {
	item, err := m.store.Get(ctx, UserNamespace(userID, TypeProfile, ""), ProfileKey)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	var profile UserProfile
	if err := json.Unmarshal(item.Value, &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}

// Update merges non-nil fields into the stored profile under the document lock.
func (m *ProfileManager) Update(ctx context.Context, userID string, update ProfileUpdate, source string) (*UserProfile, error) {
	var profile *UserProfile
	err := withDocument(ctx, m.locker, UserNamespace(userID, TypeProfile, ""), ProfileKey, func() error {
		var err error
		profile, err = m.merge(ctx, userID, update, source)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info(moduleName, "Updated profile", map[string]interface{}{
		"user":   EncodeUserID(userID),
		"source": source,
	})
	return profile, nil
}

func (m *ProfileManager) merge(ctx context.Context, userID string, update ProfileUpdate, source string) (*UserProfile, error) {
	current, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = &UserProfile{}
	}

	if update.Name != nil {
		current.Name = update.Name
	}
	if update.PreferredName != nil {
		current.PreferredName = update.PreferredName
	}
	if update.Birthday != nil {
		current.Birthday = update.Birthday
	}
	current.UpdatedAt = m.now()
	current.Source = source

	if err := validate.Struct(current); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	data, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, UserNamespace(userID, TypeProfile, ""), ProfileKey, data); err != nil {
		return nil, fmt.Errorf("put profile: %w", err)
	}
	return current, nil
}

// FormatForPrompt renders what is known about the user, or "" when nothing is.
func FormatForPrompt(profile *UserProfile) string {
	if profile == nil {
		return ""
	}

	var parts []string
	if profile.PreferredName != nil && *profile.PreferredName != "" {
		parts = append(parts, fmt.Sprintf("The user prefers to be called %s.", *profile.PreferredName))
	} else if profile.Name != nil && *profile.Name != "" {
		parts = append(parts, fmt.Sprintf("The user's name is %s.", *profile.Name))
	}
	if profile.Birthday != nil && !profile.Birthday.IsZero() {
		parts = append(parts, fmt.Sprintf("Their birthday is %s.", profile.Birthday.Format("January 02")))
	}

	if len(parts) == 0 {
		return ""
	}
	return "USER CONTEXT:\n" + strings.Join(parts, " ")
}
