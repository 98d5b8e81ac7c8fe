package watch_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/watch"
)

func start(t *testing.T, dir string) <-chan struct{} {
	t.Helper()
	reloads := make(chan struct{}, 16)
	w, err := watch.Open(dir, func(context.Context) error {
		reloads <- struct{}{}
		return nil
	}, watch.WithDebounce(100*time.Millisecond), watch.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return reloads
}

func TestBurstTriggersOneReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "contracts")
	reloads := start(t, dir)

	for _, name := range []string{"Product.yaml", "Brand.yaml", "Order.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("controllerName: X\n"), 0o644))
	}

	select {
	case <-reloads:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after contract change")
	}
	select {
	case <-reloads:
		t.Fatal("burst produced more than one reload")
	case <-time.After(400 * time.Millisecond):
	}

	require.NoError(t, os.Remove(filepath.Join(dir, "Brand.yaml")))
	select {
	case <-reloads:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after contract removal")
	}
}

func TestIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	reloads := start(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("todo"), 0o644))
	select {
	case <-reloads:
		t.Fatal("reload for a non-contract file")
	case <-time.After(400 * time.Millisecond):
	}
}
