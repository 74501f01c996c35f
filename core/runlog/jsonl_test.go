package runlog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/skyplan/core/model"
)

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	// ~20 KiB per record crosses the 1 MB threshold well before the end.
	pad := strings.Repeat("x", 20*1024)
	for i := 0; i < 80; i++ {
		rec := Record{RunID: pad, Timestamp: time.Now()}
		require.NoError(t, store.Append(context.Background(), rec))
	}
	files, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "runs*"))
	assert.Greater(t, len(files), 1, "expected rotated backups")

	out, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRotatingJSONLStore_Query(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, Record{RunID: "b", Timestamp: t0.Add(time.Hour), Telescopes: []string{"ZTF"},
		Summary: model.Summary{ProbabilityCaptured: 0.6}}))
	require.NoError(t, store.Append(ctx, Record{RunID: "a", Timestamp: t0, Telescopes: []string{"ZTF", "KPED"},
		Summary: model.Summary{ProbabilityCaptured: 0.2}}))

	all, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].RunID)

	kped, err := store.Query(ctx, Query{TelescopeID: "KPED"})
	require.NoError(t, err)
	require.Len(t, kped, 1)
	assert.Equal(t, "a", kped[0].RunID)

	good, err := store.Query(ctx, Query{MinProbability: 0.5, Start: t0.Add(time.Minute)})
	require.NoError(t, err)
	require.Len(t, good, 1)
	assert.Equal(t, "b", good[0].RunID)

	byID, err := store.Query(ctx, Query{RunID: "b"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, []string{"ZTF"}, byID[0].Telescopes)
}

func TestAppendCanceled(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"), 1, 1, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Append(ctx, Record{}), context.Canceled)
}
