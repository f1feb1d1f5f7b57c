package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_MergesBurst(t *testing.T) {
	input := make(chan ChangeEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(input, 50*time.Millisecond, time.Second)
	d.Start(ctx)

	for _, p := range []string{"a.toml", "a.toml", "a.toml"} {
		input <- ChangeEvent{Type: ChangeTypeConfig, Paths: []string{p}}
	}

	select {
	case ev := <-d.Output():
		assert.Equal(t, ChangeTypeConfig, ev.Type)
		assert.Len(t, ev.Paths, 3)
	case <-time.After(time.Second):
		require.FailNow(t, "Timeout waiting for debounced event")
	}

	select {
	case ev := <-d.Output():
		assert.Failf(t, "unexpected second event", "%+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncer_MaxWait(t *testing.T) {
	input := make(chan ChangeEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(input, 200*time.Millisecond, 100*time.Millisecond)
	d.Start(ctx)

	// Keep the quiet timer from ever firing
	stop := time.After(400 * time.Millisecond)
	got := make(chan ChangeEvent, 1)
	go func() {
		ev, ok := <-d.Output()
		if ok {
			got <- ev
		}
	}()

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			input <- ChangeEvent{Type: ChangeTypeConfig, Paths: []string{"a.toml"}}
			continue
		case ev := <-got:
			assert.Equal(t, ChangeTypeConfig, ev.Type)
			return
		case <-stop:
			require.FailNow(t, "maxWait did not release the batch")
		}
	}
}

func TestDebouncer_OrdersRemovalFirst(t *testing.T) {
	input := make(chan ChangeEvent, 2)
	input <- ChangeEvent{Type: ChangeTypeConfig, Paths: []string{"a.toml"}}
	input <- ChangeEvent{Type: ChangeTypeRemoved, Paths: []string{"a.toml"}}
	close(input)

	d := NewDebouncer(input, time.Second, time.Second)
	d.Start(context.Background())

	var types []ChangeType
	for ev := range d.Output() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []ChangeType{ChangeTypeRemoved, ChangeTypeConfig}, types)
}

func TestAnalyzeChanges(t *testing.T) {
	a := AnalyzeChanges(ChangeEvent{Type: ChangeTypeConfig})
	assert.True(t, a.Reload, "config change reloads")
	assert.False(t, a.KeepServing, "config change")

	a = AnalyzeChanges(ChangeEvent{Type: ChangeTypeRemoved})
	assert.False(t, a.Reload, "removal")
	assert.True(t, a.KeepServing, "removal keeps serving")
}

func TestFileWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "circuit-index.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = 8080\n"), 0o644))

	fw, err := NewFileWatcher(path)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("port = 9090\n"), 0o644))

	select {
	case ev := <-fw.Events():
		assert.Equal(t, ChangeTypeConfig, ev.Type)
		for _, p := range ev.Paths {
			assert.Equal(t, "circuit-index.toml", filepath.Base(p))
		}
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Timeout waiting for change event")
	}

	cancel()
	for range fw.Events() {
	}
}
