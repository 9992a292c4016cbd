package transcode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edirooss/rtsp2hls/pkg/avurl"
)

// Validate checks the config is usable for a transcode session.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Binary) == "" {
		errs = append(errs, errors.New("binary: required"))
	}
	if err := validateSourceURL(c.SourceURL); err != nil {
		errs = append(errs, fmt.Errorf("source_url: %w", err))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir: required"))
	}
	if c.SegmentDuration <= 0 {
		errs = append(errs, fmt.Errorf("segment_duration: must be positive (got %d)", c.SegmentDuration))
	}
	if c.WindowSize <= 0 {
		errs = append(errs, fmt.Errorf("window_size: must be positive (got %d)", c.WindowSize))
	}
	if c.VideoMode != VideoModeCopy && c.VideoMode != VideoModeLowLatency {
		errs = append(errs, fmt.Errorf("video_mode: unknown value %d", int(c.VideoMode)))
	}
	if c.Transport != TransportTCP && c.Transport != TransportUDP {
		errs = append(errs, fmt.Errorf("transport: unknown value %d", int(c.Transport)))
	}

	return errors.Join(errs...)
}

// validateSourceURL
//
// Policy:
//   - Require a protocol. FFmpeg opens a local file when the scheme is
//     missing; the source must be a network feed.
//   - rtsp/rtsps sources need a host.
func validateSourceURL(raw string) error {
	if raw == "" {
		return errors.New("required")
	}

	url, err := avurl.Parse(raw)
	if err != nil {
		return err
	}

	if url.Schema == "" {
		return errors.New("missing protocol")
	}

	switch url.Schema {
	case "rtsp", "rtsps":
		if url.Host == "" {
			return fmt.Errorf("missing host for '%s' source", url.Schema)
		}
	}

	return nil
}
