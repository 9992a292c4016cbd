package segmentdir

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch observes the directory and calls fn whenever the playlist appears
// or disappears. It blocks until ctx is done or the watcher fails.
//
// ffmpeg publishes the playlist by renaming a temp file over it, which
// shows up as Create on the playlist name; Purge shows up as Remove.
func (m *Manager) Watch(ctx context.Context, fn func(published bool)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(m.dir); err != nil {
		return err
	}

	playlist := filepath.Join(m.dir, PlaylistName)
	published := m.IsPublishing()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != playlist {
				continue
			}
			now := m.IsPublishing()
			if now == published {
				continue
			}
			published = now
			if published {
				m.log.Info("playlist published", zap.String("path", playlist))
			} else {
				m.log.Info("playlist withdrawn", zap.String("path", playlist), zap.String("op", ev.Op.String()))
			}
			fn(published)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("watch error", zap.Error(err))
		}
	}
}
