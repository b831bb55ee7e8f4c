package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/August13742/Homebrew-Karaoke/scoring"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "history.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func finalScore(perfectSeconds float64) scoring.ScoreState {
	acc := scoring.NewAccumulator(10)
	for i := 0; i < int(perfectSeconds*60); i++ {
		acc.Add(scoring.Perfect, 1.0/60)
	}
	acc.Add(scoring.Miss, 1.0/60)
	return acc.State()
}

func TestSaveAndGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	rec := NewRecord("", "lullaby", "lullaby.mid", -2, finalScore(1))
	require.NotEmpty(t, rec.ID)
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "lullaby", got.Song)
	assert.Equal(t, -2, got.KeyShift)
	assert.Equal(t, 60, got.Perfect)
	assert.Equal(t, 1, got.Miss)
	assert.InDelta(t, 100.0, got.Score, 1e-6)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndBest(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	for i, secs := range []float64{1, 3, 2} {
		rec := NewRecord("", "anthem", "anthem.json", 0, finalScore(secs))
		rec.CreatedAt = time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.Save(ctx, rec))
	}
	require.NoError(t, s.Save(ctx, NewRecord("", "ballad", "ballad.json", 0, finalScore(5))))

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	anthem, err := s.List(ctx, "anthem", 2)
	require.NoError(t, err)
	require.Len(t, anthem, 2)
	assert.True(t, anthem[0].CreatedAt.After(anthem[1].CreatedAt))
	assert.InDelta(t, 200.0, anthem[0].Score, 1e-6)

	best, err := s.Best(ctx, "anthem")
	require.NoError(t, err)
	assert.InDelta(t, 300.0, best.Score, 1e-6)

	_, err = s.Best(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRequiresID(t *testing.T) {
	s := openTemp(t)
	assert.Error(t, s.Save(context.Background(), Record{}))
}
