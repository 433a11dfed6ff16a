package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/sii-reconciler/internal/analysis"
	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func file(category models.Category, name string, rows int) *analysis.FileResult {
	return &analysis.FileResult{
		Name:     name,
		Category: category,
		Rows:     rows,
		Batch:    &models.ValidationBatch{Category: category},
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, cfg Config) (*Store, *fakeClock) {
	logger, _ := zap.NewDevelopment()
	clock := &fakeClock{t: time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)}
	st := NewStore(cfg, logger)
	st.now = clock.Now
	return st, clock
}

func TestStore_CreateAndGet(t *testing.T) {
	st, _ := newTestStore(t, DefaultConfig())

	s := st.Create()
	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)

	got, err := st.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, st.Len())

	_, err = st.Get("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestStore_PutFile(t *testing.T) {
	st, _ := newTestStore(t, DefaultConfig())
	s := st.Create()

	require.NoError(t, st.PutFile(s.ID, file(models.CategorySale, "ventas_01.csv", 10)))
	require.NoError(t, st.PutFile(s.ID, file(models.CategoryPurchase, "compras_01.csv", 5)))
	require.NoError(t, st.PutFile(s.ID, file(models.CategorySale, "ventas_02.csv", 7)))

	t.Run("keeps upload order", func(t *testing.T) {
		files := s.Files()
		require.Len(t, files, 3)
		assert.Equal(t, "ventas_01.csv", files[0].Name)
		assert.Equal(t, "compras_01.csv", files[1].Name)
		assert.Equal(t, "ventas_02.csv", files[2].Name)
		assert.Equal(t, 2, s.Count(models.CategorySale))
		assert.Equal(t, 1, s.Count(models.CategoryPurchase))
	})

	t.Run("re-upload replaces in place", func(t *testing.T) {
		require.NoError(t, st.PutFile(s.ID, file(models.CategorySale, "ventas_01.csv", 99)))

		files := s.Files()
		require.Len(t, files, 3)
		assert.Equal(t, "ventas_01.csv", files[0].Name)
		assert.Equal(t, 99, files[0].Rows)
	})

	t.Run("same name in another category is a different file", func(t *testing.T) {
		require.NoError(t, st.PutFile(s.ID, file(models.CategoryPurchase, "ventas_01.csv", 1)))
		assert.Len(t, s.Files(), 4)

		f, ok := s.File(models.CategoryPurchase, "ventas_01.csv")
		require.True(t, ok)
		assert.Equal(t, 1, f.Rows)
	})

	t.Run("unknown session", func(t *testing.T) {
		err := st.PutFile("nope", file(models.CategorySale, "x.csv", 1))
		assert.True(t, errors.Is(err, ErrSessionNotFound))
	})
}

func TestStore_PutFile_Limit(t *testing.T) {
	st, _ := newTestStore(t, Config{TTL: time.Hour, MaxFilesPerCategory: 2})
	s := st.Create()

	require.NoError(t, st.PutFile(s.ID, file(models.CategorySale, "a.csv", 1)))
	require.NoError(t, st.PutFile(s.ID, file(models.CategorySale, "b.csv", 1)))

	err := st.PutFile(s.ID, file(models.CategorySale, "c.csv", 1))
	assert.True(t, errors.Is(err, ErrTooManyFiles))

	// replacing and other categories are still allowed
	require.NoError(t, st.PutFile(s.ID, file(models.CategorySale, "b.csv", 2)))
	require.NoError(t, st.PutFile(s.ID, file(models.CategoryPurchase, "c.csv", 1)))
}

func TestStore_RemoveFile(t *testing.T) {
	st, _ := newTestStore(t, DefaultConfig())
	s := st.Create()
	require.NoError(t, st.PutFile(s.ID, file(models.CategorySale, "a.csv", 1)))
	require.NoError(t, st.PutFile(s.ID, file(models.CategorySale, "b.csv", 1)))

	require.NoError(t, st.RemoveFile(s.ID, models.CategorySale, "a.csv"))

	files := s.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "b.csv", files[0].Name)

	err := st.RemoveFile(s.ID, models.CategorySale, "a.csv")
	assert.True(t, errors.Is(err, ErrFileNotFound))

	err = st.RemoveFile(s.ID, models.CategoryPurchase, "b.csv")
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestStore_Delete(t *testing.T) {
	st, _ := newTestStore(t, DefaultConfig())
	s := st.Create()

	require.NoError(t, st.Delete(s.ID))
	assert.Equal(t, 0, st.Len())
	assert.True(t, errors.Is(st.Delete(s.ID), ErrSessionNotFound))
}

func TestStore_Expiry(t *testing.T) {
	st, clock := newTestStore(t, Config{TTL: 30 * time.Minute})
	idle := st.Create()
	active := st.Create()

	clock.Advance(20 * time.Minute)
	_, err := st.Get(active.ID)
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)

	_, err = st.Get(idle.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	_, err = st.Get(active.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, st.Sweep())
	assert.Equal(t, 1, st.Len())
	assert.Equal(t, 0, st.Sweep())
}

func TestStore_Info(t *testing.T) {
	st, clock := newTestStore(t, Config{TTL: time.Hour})
	s := st.Create()
	require.NoError(t, st.PutFile(s.ID, file(models.CategorySale, "ventas.csv", 3)))

	clock.Advance(10 * time.Minute)
	info, err := st.Info(s.ID)
	require.NoError(t, err)

	assert.Equal(t, s.ID, info.ID)
	assert.Equal(t, clock.Now().Add(time.Hour), info.ExpiresAt)
	require.Len(t, info.Files, 1)
	assert.Equal(t, "ventas.csv", info.Files[0].Name)
	assert.Equal(t, 3, info.Files[0].Rows)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	st, _ := newTestStore(t, Config{TTL: time.Hour})
	s := st.Create()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			category := models.CategorySale
			if i%2 == 1 {
				category = models.CategoryPurchase
			}
			_ = st.PutFile(s.ID, file(category, "f.csv", i))
			_, _ = st.Info(s.ID)
			st.Sweep()
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Files(), 2)
}
