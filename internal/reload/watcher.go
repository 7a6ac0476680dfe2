package reload

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/timzifer/cqlreg/config"
)

type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher keeps track of the files a configuration was built from and
// detects modifications.
type Watcher struct {
	mu    sync.Mutex
	files map[string]fileState
}

// NewWatcher builds a watcher over root and the source files of cfg.
func NewWatcher(root string, cfg *config.Configuration) (*Watcher, error) {
	watcher := &Watcher{}
	if err := watcher.Update(root, cfg); err != nil {
		return nil, err
	}
	return watcher, nil
}

// Update replaces the tracked file list. Missing files and directories are skipped.
func (w *Watcher) Update(root string, cfg *config.Configuration) error {
	if w == nil {
		return nil
	}
	paths := cfg.Files()
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			paths = append(paths, abs)
		}
	}
	states := make(map[string]fileState, len(paths))
	for _, path := range uniquePaths(paths) {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		states[path] = fileState{modTime: info.ModTime(), size: info.Size()}
	}
	w.mu.Lock()
	w.files = states
	w.mu.Unlock()
	return nil
}

// Files returns the tracked paths in sorted order.
func (w *Watcher) Files() []string {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	files := make([]string, 0, len(w.files))
	for path := range w.files {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Check reports the files that changed or vanished since the last snapshot.
func (w *Watcher) Check() ([]string, error) {
	if w == nil {
		return nil, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := make([]string, 0)
	for path, state := range w.files {
		info, err := os.Stat(path)
		if err != nil {
			changed = append(changed, path)
			continue
		}
		if info.IsDir() {
			continue
		}
		if info.ModTime().After(state.modTime) || info.Size() != state.size {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// Poll calls onChange with the changed files every interval until ctx is done.
// The snapshot is not refreshed; onChange is expected to call Update after a
// successful reload.
func (w *Watcher) Poll(ctx context.Context, interval time.Duration, onChange func([]string)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			changed, err := w.Check()
			if err != nil {
				return err
			}
			if len(changed) > 0 {
				onChange(changed)
			}
		}
	}
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	result := make([]string, 0, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		result = append(result, path)
	}
	return result
}
