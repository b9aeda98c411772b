package server

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses the burst of events an editor save produces.
const reloadDebounce = 100 * time.Millisecond

// watchFixture reloads the fixture file when it changes. The directory is
// watched rather than the file so rename-on-save editors are seen.
func (s *Server) watchFixture(ctx context.Context) error {
	path, err := filepath.Abs(s.reloader.FixturePath())
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		s.logger.Error("failed to watch fixture", slog.String("path", path), slog.String("error", err.Error()))
		// Don't fail - continue serving without watching
		<-ctx.Done()
		return nil
	}
	s.logger.Info("watching fixture", slog.String("path", path))

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				s.reload(path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

// reload re-reads the fixture and tells subscribers. A broken fixture
// leaves the previous one in service.
func (s *Server) reload(path string) {
	ev := ReloadEvent{Path: path, At: time.Now().UTC()}
	if err := s.reloader.Reload(); err != nil {
		ev.Error = err.Error()
		s.logger.Error("fixture reload failed", slog.String("path", path), slog.String("error", err.Error()))
	} else {
		s.logger.Info("fixture reloaded", slog.String("path", path))
	}
	s.notifier.Broadcast(ev)
}
