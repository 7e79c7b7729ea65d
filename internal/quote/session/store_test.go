package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"software-quoter/internal/common/database"
	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/models"
)

// ==========================
// MemoryStore
// ==========================

func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	s := New("s1", models.DefaultProjectInput(), now)
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	got.Input.ProjectName = "mutated"
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, again.Input.ProjectName)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, New("s1", models.DefaultProjectInput(), time.Now())))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ==========================
// RedisStore
// ==========================

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "quote:session:", time.Minute), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	s := New("s1", models.DefaultProjectInput(), time.Now().UTC())
	s.Files = []models.UploadedFile{{Name: "flow.json", Type: "application/json", Data: "e30="}}
	require.NoError(t, s.BeginSubmit())
	require.NoError(t, s.Complete(sampleQuote(1200), nil))
	require.NoError(t, store.Save(ctx, s))

	assert.True(t, mr.Exists("quote:session:s1"))
	assert.Equal(t, time.Minute, mr.TTL("quote:session:s1"))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StateResultShown, got.State)
	assert.Equal(t, 1200.0, got.Result.TotalEstimatedCost)
	assert.Equal(t, "flow.json", got.Files[0].Name)
	assert.Equal(t, models.NumericText("35"), got.Input.HourlyRate)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Errors(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("quote:session:bad", "not-json"))
	_, err := store.Get(ctx, "bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	mr.Close()
	_, err = store.Get(ctx, "s1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

// ==========================
// Manager
// ==========================

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(NewMemoryStore(time.Hour), logger.NewTestLogger(t))
	ctx := context.Background()

	s, err := m.Create(ctx, models.DefaultProjectInput())
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	updated, err := m.Update(ctx, s.ID, func(s *Session) error {
		s.Input.ProjectName = "Shop"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Shop", updated.Input.ProjectName)

	_, err = m.Update(ctx, s.ID, func(s *Session) error {
		s.Input.ProjectName = "discarded"
		return errors.New("boom")
	})
	require.Error(t, err)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", got.Input.ProjectName)

	require.NoError(t, m.Delete(ctx, s.ID))
	_, err = m.Get(ctx, s.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))

	err = m.Delete(ctx, s.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
}

func TestManager_UpdateIsSerialised(t *testing.T) {
	m := NewManager(NewMemoryStore(time.Hour), logger.NewNoOpLogger())
	ctx := context.Background()

	s, err := m.Create(ctx, models.DefaultProjectInput())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Update(ctx, s.ID, func(s *Session) error {
				return s.AddFiles([]models.UploadedFile{{Name: "f.json"}}, nil)
			})
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Files, 20)
	assert.Empty(t, m.locks)
}

func TestManager_SingleSubmissionWins(t *testing.T) {
	m := NewManager(NewMemoryStore(time.Hour), logger.NewNoOpLogger())
	ctx := context.Background()

	s, err := m.Create(ctx, models.DefaultProjectInput())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, rejected := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Update(ctx, s.ID, func(s *Session) error { return s.BeginSubmit() })
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if apperrors.HasCode(err, apperrors.ErrCodeSubmissionInProgress) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 9, rejected)
}

func TestManager_UnknownSession(t *testing.T) {
	m := NewManager(NewMemoryStore(time.Hour), logger.NewNoOpLogger())
	_, err := m.Update(context.Background(), "missing", func(*Session) error { return nil })
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
}
