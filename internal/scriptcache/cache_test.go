package scriptcache

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/testhelpers"
)

// exerciseStore runs the cache protocol against any backend.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	fp := uuid.NewString()

	t.Run("miss has no side effects", func(t *testing.T) {
		got, err := store.Lookup(ctx, fp)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	var id string
	t.Run("lookup counts uses", func(t *testing.T) {
		var err error
		id, err = store.Save(ctx, fp, `{"version":1,"ops":[]}`, "rename columns", 120)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		first, err := store.Lookup(ctx, fp)
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, 1, first.UseCount)
		assert.Equal(t, 120, first.TokenCost)
		assert.Equal(t, id, first.ID)
		assert.Equal(t, "rename columns", first.Description)

		second, err := store.Lookup(ctx, fp)
		require.NoError(t, err)
		assert.Equal(t, 2, second.UseCount)
	})

	t.Run("save again replaces text and accumulates cost", func(t *testing.T) {
		again, err := store.Save(ctx, fp, `{"version":1,"ops":[{"op":"dedupe_columns"}]}`, "v2", 30)
		require.NoError(t, err)
		assert.Equal(t, id, again, "one script per fingerprint")

		got, err := store.Lookup(ctx, fp)
		require.NoError(t, err)
		assert.Equal(t, `{"version":1,"ops":[{"op":"dedupe_columns"}]}`, got.Text)
		assert.Equal(t, 150, got.TokenCost)
		assert.Equal(t, 3, got.UseCount, "replacing the script keeps the use count")
	})

	t.Run("concurrent lookups are counted once each", func(t *testing.T) {
		other := uuid.NewString()
		_, err := store.Save(ctx, other, "{}", "", 0)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Lookup(ctx, other)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.Lookup(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, 11, got.UseCount)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStoreSnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Save(ctx, "fp", "text", "", 0)
	require.NoError(t, err)

	got, err := store.Lookup(ctx, "fp")
	require.NoError(t, err)
	got.Text = "mutated"

	again, err := store.Lookup(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "text", again.Text)
}

func TestPostgresStore(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Truncate(t, "correction_scripts")

	exerciseStore(t, NewPostgresStore(db.Pool))
}

func TestRedisStore(t *testing.T) {
	client := testhelpers.GetRedis(t)

	exerciseStore(t, NewRedisStore(client, "test-"+uuid.NewString()[:8]))
}

func TestParseHashRejectsOddReply(t *testing.T) {
	_, err := parseHash([]interface{}{"id"})
	assert.Error(t, err)
}
