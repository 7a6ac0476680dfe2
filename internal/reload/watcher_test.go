package reload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/timzifer/cqlreg/config"
)

func TestUniquePathsFiltersDuplicatesAndEmptyValues(t *testing.T) {
	got := uniquePaths([]string{"", "/tmp/a", "/tmp/b", "/tmp/a", "/tmp/c", "/tmp/b"})
	want := []string{"/tmp/a", "/tmp/b", "/tmp/c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("uniquePaths() = %v, want %v", got, want)
	}
}

func TestWatcherTracksConfigurationFilesAndRoot(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "clients.yaml")
	override := filepath.Join(dir, "override.yaml")
	root := filepath.Join(dir, "cqlcheck.yaml")
	writeFile(t, base, "Client:\n  Default:\n    endpoints: [db1]\n")
	writeFile(t, override, "Client:\n  Default:\n    port: 9043\n")
	writeFile(t, root, "Logging:\n  level: debug\n")

	cfg, err := config.NewBuilder().AddYAMLFile(base).AddYAMLFile(override).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	watcher, err := NewWatcher(root, cfg)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	want := []string{base, root, override}
	if got := watcher.Files(); !reflect.DeepEqual(got, sorted(want)) {
		t.Fatalf("Files() = %v, want %v", got, sorted(want))
	}
}

func TestWatcherSkipsMissingRoot(t *testing.T) {
	var watcher Watcher
	if err := watcher.Update(filepath.Join(t.TempDir(), "missing.yaml"), config.Empty()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(watcher.Files()) != 0 {
		t.Fatalf("expected no tracked files, got %v", watcher.Files())
	}
}

func TestWatcherCheckDetectsChangesAndRemovals(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.yaml")
	fileB := filepath.Join(dir, "b.yaml")
	writeFile(t, fileA, "a: 1\n")
	writeFile(t, fileB, "b: 2\n")

	cfg, err := config.NewBuilder().AddYAMLFile(fileA).AddYAMLFile(fileB).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	watcher, err := NewWatcher("", cfg)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	if changed, err := watcher.Check(); err != nil {
		t.Fatalf("Check() error = %v", err)
	} else if len(changed) != 0 {
		t.Fatalf("expected no changes on first check, got %v", changed)
	}

	writeFile(t, fileA, "a: 12345\n")
	if err := os.Remove(fileB); err != nil {
		t.Fatalf("Remove(%s) error = %v", fileB, err)
	}

	changed, err := watcher.Check()
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if want := sorted([]string{fileA, fileB}); !reflect.DeepEqual(changed, want) {
		t.Fatalf("Check() = %v, want %v", changed, want)
	}
}

func TestWatcherPollReportsChanges(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clients.yaml")
	writeFile(t, file, "a: 1\n")
	cfg, err := config.NewBuilder().AddYAMLFile(file).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	watcher, err := NewWatcher("", cfg)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	writeFile(t, file, "a: 1\nb: 2\n")

	var got []string
	err = watcher.Poll(ctx, 5*time.Millisecond, func(changed []string) {
		got = changed
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Poll() error = %v, want context.Canceled", err)
	}
	if !reflect.DeepEqual(got, []string{file}) {
		t.Fatalf("Poll() reported %v, want %v", got, []string{file})
	}
}

func TestWatcherHandlesNilReceiver(t *testing.T) {
	var watcher *Watcher
	if err := watcher.Update("", config.Empty()); err != nil {
		t.Fatalf("nil watcher Update() error = %v", err)
	}
	if changed, err := watcher.Check(); err != nil {
		t.Fatalf("nil watcher Check() error = %v", err)
	} else if changed != nil {
		t.Fatalf("expected nil slice from nil watcher, got %v", changed)
	}
}

func sorted(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}
