package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/magsim/internal/sim"
)

func sampleRecord() Record {
	return Record{
		StepCounter: 123456,
		Polarity:    -1,
		Field:       -300000,
		Resume:      true,
		Spins:       [][3]float64{{0, 0, 1}, {0.6, 0, -0.8}},
		SavedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func stores(t *testing.T) map[string]Bridge {
	t.Helper()
	dir := t.TempDir()

	sq := NewSQLiteStore(filepath.Join(dir, "ckpt.db"), "loop-a")
	require.NoError(t, sq.Init(context.Background()))
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Bridge{
		"file":   NewFileStore(filepath.Join(dir, "nested", "checkpoint.json")),
		"sqlite": sq,
		"memory": NewMemoryStore(),
	}
}

func TestStores_AbsentIsNotAnError(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := st.LoadResumeState(context.Background())
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStores_SaveLoad(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleRecord()
			require.NoError(t, st.SaveState(ctx, want))

			got, ok, err := st.LoadResumeState(ctx)
			require.NoError(t, err)
			require.True(t, ok)

			assert.Equal(t, want.StepCounter, got.StepCounter)
			assert.Equal(t, want.Polarity, got.Polarity)
			assert.Equal(t, want.Field, got.Field)
			assert.Equal(t, want.Resume, got.Resume)
			assert.Equal(t, want.Spins, got.Spins)
			assert.True(t, want.SavedAt.Equal(got.SavedAt))

			// Later saves replace the record.
			next := want
			next.Polarity = 1
			next.Field = 0
			next.StepCounter = 200000
			require.NoError(t, st.SaveState(ctx, next))

			got, ok, err = st.LoadResumeState(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, int64(1), got.Polarity)
			assert.Equal(t, uint64(200000), got.StepCounter)
		})
	}
}

func TestSQLiteStore_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a := NewSQLiteStore(path, "a")
	b := NewSQLiteStore(path, "b")
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })

	require.NoError(t, a.SaveState(ctx, sampleRecord()))

	_, ok, err := b.LoadResumeState(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = a.LoadResumeState(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, ok, err := NewFileStore(path).LoadResumeState(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, sim.ErrCheckpointInconsistent)
}

func TestFileStore_BadPolarity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"step_counter": 10, "polarity": 0, "field": 5}`), 0644))

	_, ok, err := NewFileStore(path).LoadResumeState(context.Background())
	assert.False(t, ok)
	require.ErrorIs(t, err, sim.ErrCheckpointInconsistent)
	assert.Contains(t, err.Error(), "polarity 0")
}

func TestRecord_Validate(t *testing.T) {
	for _, p := range []int64{-1, 1, PolarityDone} {
		assert.NoError(t, Record{Polarity: p}.Validate(), "polarity %d", p)
	}
	for _, p := range []int64{0, 2, -3, 5} {
		assert.ErrorIs(t, Record{Polarity: p}.Validate(), sim.ErrCheckpointInconsistent, "polarity %d", p)
	}
}

func TestRecord_Resumable(t *testing.T) {
	assert.NoError(t, sampleRecord().Resumable())

	rec := sampleRecord()
	rec.Resume = false
	err := rec.Resumable()
	require.ErrorIs(t, err, sim.ErrCheckpointInconsistent)
	assert.Contains(t, err.Error(), "not marked resumable")
}

func TestSnapshot(t *testing.T) {
	state := &sim.RunState{Time: 77, Polarity: 1, Field: 400000}
	rec := Snapshot(state, nil)

	assert.Equal(t, uint64(77), rec.StepCounter)
	assert.Equal(t, int64(1), rec.Polarity)
	assert.Equal(t, int64(400000), rec.Field)
	assert.True(t, rec.Resume)
	assert.False(t, rec.SavedAt.IsZero())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, closeFn, err := Open(ctx, "file", filepath.Join(dir, "c.json"), "")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, b)
	require.NoError(t, closeFn())

	b, closeFn, err = Open(ctx, "sqlite", filepath.Join(dir, "c.db"), "k")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, b)
	require.NoError(t, closeFn())

	_, _, err = Open(ctx, "file", "", "")
	assert.Error(t, err)

	_, _, err = Open(ctx, "etcd", "x", "")
	assert.Error(t, err)
}
