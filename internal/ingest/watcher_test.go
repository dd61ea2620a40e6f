package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyntus/facturation/constants"
)

func TestClassifyFeed(t *testing.T) {
	tests := []struct {
		path string
		want constants.Feed
	}{
		{"/drop/export_pidi_2026-03.csv", constants.FeedPIDI},
		{"/drop/PIDI.CSV", constants.FeedPIDI},
		{"/drop/suivi-pidi.txt", constants.FeedPIDI},
		{"/drop/praxedo_interventions.csv", constants.FeedPraxedo},
		{"/drop/export.csv", constants.FeedPraxedo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyFeed(tt.path), tt.path)
	}
}

func waitForEvent(t *testing.T, events <-chan DropEvent) DropEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no drop event received")
		return DropEvent{}
	}
}

func TestWatcherInitialScan(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "export_pidi.csv")
	require.NoError(t, os.WriteFile(path, []byte("N° de flux PIDI\nFLX1\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true}, nil)
	require.NoError(t, err)

	ev := waitForEvent(t, events)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, constants.FeedPIDI, ev.Feed)
}

func TestWatcherEmitsDebouncedWrite(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{root},
		Debounce: 20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	path := filepath.Join(root, "praxedo_interventions.csv")
	require.NoError(t, os.WriteFile(path, []byte("N° OT\nOT1\n"), 0o644))

	ev := waitForEvent(t, events)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, constants.FeedPraxedo, ev.Feed)
}

func TestWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	require.Error(t, err)
}

func TestIsFeedFile(t *testing.T) {
	assert.True(t, isFeedFile("/drop/a.csv"))
	assert.True(t, isFeedFile("/drop/a.CSV"))
	assert.True(t, isFeedFile("/drop/a.txt"))
	assert.False(t, isFeedFile("/drop/a.xlsx"))
	assert.False(t, isFeedFile("/drop/nodir"))
}
