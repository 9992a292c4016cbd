// Package segmentdir owns the HLS output directory.
//
// The transcoder is the only writer; HTTP handlers are readers. This package
// never writes media. It prepares the directory, reports whether a playlist
// is being published, clears the previous run's window before a restart, and
// resolves client file names to files inside the directory.
//
// Visibility contract:
//
//   - A playlist, once readable, only references complete segments. ffmpeg
//     is instructed (temp_file) to write both via rename.
//   - Purge removes the playlist before any segment, so a reader never holds
//     a playlist that points at a segment Purge already removed.
package segmentdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/edirooss/rtsp2hls/pkg/ffmpegcmd"
	"go.uber.org/zap"
)

var (
	// ErrDirectoryUnavailable means the output location cannot be prepared.
	ErrDirectoryUnavailable = errors.New("output directory unavailable")
	// ErrFileNotFound is returned by Open for absent or disallowed names.
	ErrFileNotFound = errors.New("file not found")
)

const (
	PlaylistName  = ffmpegcmd.PlaylistName
	segmentPrefix = "segment_" // see ffmpegcmd.SegmentPattern
	segmentExt    = ".ts"
	playlistExt   = ".m3u8"
	tempExt       = ".tmp"
)

// Manager owns one output directory.
type Manager struct {
	log *zap.Logger
	dir string
}

// NewManager returns a Manager for dir. No filesystem access happens here.
func NewManager(log *zap.Logger, dir string) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log: log.Named("segmentdir"),
		dir: filepath.Clean(dir),
	}
}

// Dir returns the managed directory path.
func (m *Manager) Dir() string { return m.dir }

// PlaylistPath returns <dir>/index.m3u8.
func (m *Manager) PlaylistPath() string { return filepath.Join(m.dir, PlaylistName) }

// EnsureReady creates the directory (and parents) if absent and verifies it
// is a writable directory. It is idempotent.
func (m *Manager) EnsureReady() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir '%s': %w", ErrDirectoryUnavailable, m.dir, err)
	}

	fi, err := os.Stat(m.dir)
	if err != nil {
		return fmt.Errorf("%w: stat '%s': %w", ErrDirectoryUnavailable, m.dir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: '%s' is not a directory", ErrDirectoryUnavailable, m.dir)
	}

	// Permission bits lie under root and on some mounts; probe instead.
	probe, err := os.CreateTemp(m.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: not writable: %w", ErrDirectoryUnavailable, err)
	}
	name := probe.Name()
	_ = probe.Close()
	if err := os.Remove(name); err != nil {
		m.log.Warn("probe cleanup failed", zap.String("path", name), zap.Error(err))
	}

	return nil
}

// IsPublishing reports whether a non-empty playlist is present.
func (m *Manager) IsPublishing() bool {
	fi, err := os.Stat(m.PlaylistPath())
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular() && fi.Size() > 0
}

// Purge removes the previous run's playlist, then its segments and temp
// files. Files not produced by the transcoder are left alone.
func (m *Manager) Purge() error {
	if err := os.Remove(m.PlaylistPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove playlist: %w", err)
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read dir: %w", err)
	}

	var errs []error
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !isTranscoderArtifact(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		m.log.Debug("purged previous window", zap.Int("files", removed))
	}
	return errors.Join(errs...)
}

// Open resolves a client-supplied file name to a file in the directory.
// Only bare playlist and segment names are served; anything else, including
// path separators and dot-files, is reported as ErrFileNotFound.
func (m *Manager) Open(name string) (*os.File, fs.FileInfo, error) {
	if !servable(name) {
		return nil, nil, ErrFileNotFound
	}

	f, err := os.Open(filepath.Join(m.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat: %w", err)
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, ErrFileNotFound
	}
	return f, fi, nil
}

func servable(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return false
	}
	if name != filepath.Base(name) {
		return false
	}
	ext := filepath.Ext(name)
	return ext == playlistExt || ext == segmentExt
}

func isTranscoderArtifact(name string) bool {
	switch {
	case strings.HasSuffix(name, tempExt):
		return strings.HasPrefix(name, PlaylistName) || strings.HasPrefix(name, segmentPrefix)
	case strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, segmentExt):
		return true
	}
	return false
}
