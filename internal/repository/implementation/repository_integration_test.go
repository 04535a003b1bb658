package implementation_test

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"sdm-platform-be/internal/entity"
	"sdm-platform-be/internal/migration"
	"sdm-platform-be/internal/model"
	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/internal/repository/implementation"
	"sdm-platform-be/internal/repository/specification"
	"sdm-platform-be/pkg/database"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/memory"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if err := godotenv.Load("../../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.Open(database.Options{DSN: dsn, Production: true})
	require.NoError(t, err)
	require.NoError(t, migration.Run(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestCheckpointRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := implementation.NewCheckpointRepository(db)
	thread := "it-" + uuid.NewString()
	t.Cleanup(func() { _ = repo.Delete(ctx, thread) })

	snap, err := repo.Get(ctx, thread)
	require.NoError(t, err)
	assert.Nil(t, snap)

	first := graph.State{Messages: []llm.Message{llm.NewHumanMessage("hi")}}
	require.NoError(t, repo.Put(ctx, thread, first, "input"))
	second := first.Clone()
	second.Messages = append(second.Messages, llm.NewAIMessage("hello"))
	require.NoError(t, repo.Put(ctx, thread, second, graph.NodeCallModel))

	snap, err = repo.Get(ctx, thread)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, graph.NodeCallModel, snap.Node)
	assert.Len(t, snap.State.Messages, 2)

	history, err := repo.History(ctx, thread)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Less(t, history[0].Step, history[1].Step)

	require.NoError(t, repo.Delete(ctx, thread))
	snap, err = repo.Get(ctx, thread)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestMemoryStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := implementation.NewMemoryStore(db)
	user := "it-" + uuid.NewString()
	ns := memory.UserNamespace(user, memory.TypeConversationPoints, "knee")
	t.Cleanup(func() { memory.DeleteUserMemories(ctx, store, nopLogger(), user, []string{"knee"}) })

	require.NoError(t, store.Put(ctx, ns, "point_goals", json.RawMessage(`{"a":1}`)))
	require.NoError(t, store.Put(ctx, ns, "point_goals", json.RawMessage(`{"a":2}`)))

	item, err := store.Get(ctx, ns, "point_goals")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.JSONEq(t, `{"a":2}`, string(item.Value))

	items, err := store.Search(ctx, ns[:3])
	require.NoError(t, err)
	assert.Len(t, items, 1)

	dotted := memory.UserNamespace(user, memory.TypeConversationPoints, "knee.v2")
	t.Cleanup(func() { _ = store.Delete(ctx, dotted, "point_goals") })
	require.NoError(t, store.Put(ctx, dotted, "point_goals", json.RawMessage(`{"a":3}`)))
	items, err = store.Search(ctx, ns)
	require.NoError(t, err)
	require.Len(t, items, 1, "knee.v2 is not nested under knee")
	assert.Equal(t, ns, items[0].Namespace)

	require.NoError(t, store.Delete(ctx, ns, "point_goals"))
	item, err = store.Get(ctx, ns, "point_goals")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestConversationRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := implementation.NewConversationRepository(db)
	thread := "it-" + uuid.NewString()
	t.Cleanup(func() { _ = repo.DeleteByThreadID(ctx, thread) })

	require.NoError(t, repo.Create(ctx, &entity.Conversation{ThreadId: thread, UserId: "u-it", JourneySlug: "knee"}))
	require.NoError(t, repo.RecordMessages(ctx, thread, 2, time.Now().UTC()))
	require.NoError(t, repo.RecordMessages(ctx, thread, 1, time.Now().UTC()))

	conv, err := repo.FindOne(ctx, specification.ByThreadID{ThreadID: thread})
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, 3, conv.MessageCount)
	assert.NotNil(t, conv.LastMessageAt)

	require.NoError(t, repo.DeleteByThreadID(ctx, thread))
	conv, err = repo.FindOne(ctx, specification.ByThreadID{ThreadID: thread})
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func nopLogger() logger.ILogger { return logger.NewNopLogger() }

func TestJourneyRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := implementation.NewJourneyRepository(db)
	slug := "it-" + uuid.NewString()[:8]
	t.Cleanup(func() { db.Where("slug IN ?", []string{slug, slug + "-off"}).Delete(&model.Journey{}) })

	require.NoError(t, db.Create(&model.Journey{Slug: slug, Name: "Knee", SystemPrompt: "Be kind.", IsActive: true}).Error)
	require.NoError(t, db.Create(&model.Journey{Slug: slug + "-off", Name: "Old"}).Error)
	require.NoError(t, db.Model(&model.Journey{}).Where("slug = ?", slug+"-off").Update("is_active", false).Error)

	got, err := repo.FindActiveJourney(ctx, slug)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Be kind.", got.SystemPrompt)

	got, err = repo.FindActiveJourney(ctx, slug+"-off")
	require.NoError(t, err)
	assert.Nil(t, got)
}
