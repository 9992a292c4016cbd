package transcode

import (
	"fmt"
	"strings"
)

// VideoMode selects how the video elementary stream is handled.
type VideoMode int

const (
	// VideoModeCopy re-packages the camera's video without re-encoding.
	VideoModeCopy VideoMode = iota
	// VideoModeLowLatency re-encodes with a fixed low-latency preset and GOP.
	VideoModeLowLatency
)

func (m VideoMode) String() string {
	switch m {
	case VideoModeCopy:
		return "copy"
	case VideoModeLowLatency:
		return "low_latency"
	default:
		return fmt.Sprintf("VideoMode(%d)", int(m))
	}
}

func (m VideoMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *VideoMode) UnmarshalText(b []byte) error {
	v, err := ParseVideoMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseVideoMode accepts "copy" or "low_latency" (case-insensitive).
func ParseVideoMode(s string) (VideoMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "copy", "passthrough":
		return VideoModeCopy, nil
	case "low_latency", "reencode":
		return VideoModeLowLatency, nil
	default:
		return 0, fmt.Errorf("invalid video mode: %q", s)
	}
}

// Transport is the RTSP lower transport.
type Transport int

const (
	TransportTCP Transport = iota
	TransportUDP
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportUDP:
		return "udp"
	default:
		return fmt.Sprintf("Transport(%d)", int(t))
	}
}

func (t Transport) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Transport) UnmarshalText(b []byte) error {
	v, err := ParseTransport(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTransport accepts "tcp" or "udp" (case-insensitive).
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp":
		return TransportTCP, nil
	case "udp":
		return TransportUDP, nil
	default:
		return 0, fmt.Errorf("invalid transport: %q", s)
	}
}

// Config parameterizes one transcode session. It is built once at startup
// and treated as an immutable value afterwards.
type Config struct {
	Binary          string    `json:"binary"`
	SourceURL       string    `json:"source_url"`
	OutputDir       string    `json:"output_dir"`
	SegmentDuration int       `json:"segment_duration"` // seconds
	WindowSize      int       `json:"window_size"`      // segments kept in the playlist
	VideoMode       VideoMode `json:"video_mode"`
	Transport       Transport `json:"transport"`
}

const (
	DefaultBinary          = "ffmpeg"
	DefaultSegmentDuration = 2
	DefaultWindowSize      = 6
)

// WithDefaults fills zero-valued fields.
func (c Config) WithDefaults() Config {
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.SegmentDuration == 0 {
		c.SegmentDuration = DefaultSegmentDuration
	}
	if c.WindowSize == 0 {
		c.WindowSize = DefaultWindowSize
	}
	return c
}
