package session

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch re-reads the session record whenever another process rewrites or
// removes it (login/logout from a second shell) and calls onChange with the
// resulting state. It blocks until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, onChange func(Session, bool)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Save replaces the file via rename, so watch the directory rather than
	// the file itself.
	path := m.store.Path()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := m.Rehydrate(); err != nil {
				m.log.Warn("session reload failed", zap.Error(err))
				continue
			}
			s, ok := m.Current()
			onChange(s, ok)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
			m.log.Warn("session watcher error", zap.Error(err))
		}
	}
}
