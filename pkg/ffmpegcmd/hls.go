package ffmpegcmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/edirooss/rtsp2hls/internal/domain/transcode"
	"github.com/edirooss/rtsp2hls/pkg/avurl"
)

const (
	// PlaylistName is the file name of the live playlist inside the output dir.
	PlaylistName = "index.m3u8"
	// SegmentPattern is the ffmpeg segment file template.
	SegmentPattern = "segment_%05d.ts"

	// Low-latency re-encode tuning. The GOP is fixed so every segment starts
	// on a keyframe regardless of scene changes.
	lowLatencyPreset = "veryfast"
	lowLatencyTune   = "zerolatency"
	lowLatencyGOP    = 50

	audioCodec      = "aac"
	audioBitrate    = "128k"
	audioSampleRate = 44100
	audioChannels   = 2

	// Segments outside the window are kept this many extra periods before
	// deletion, so a reader holding the previous playlist can still fetch them.
	deleteThreshold = 1
)

// hlsFlags instruct ffmpeg to write playlist and segments to a temp name and
// rename into place, and to delete segments once they leave the window.
var hlsFlags = []string{"delete_segments", "temp_file", "independent_segments"}

// CommandSpec is the fully resolved transcoder invocation.
type CommandSpec struct {
	Argv         []string `json:"argv"`
	PlaylistPath string   `json:"playlist_path"`
}

// String renders the invocation shell-quoted with source credentials
// redacted. Use it for logs.
func (s CommandSpec) String() string {
	argv := make([]string, len(s.Argv))
	copy(argv, s.Argv)
	for i := 0; i < len(argv)-1; i++ {
		if argv[i] == "-i" {
			argv[i+1] = avurl.Redact(argv[i+1])
		}
	}
	return quoteArgv(argv)
}

// Build maps a transcode config to the ffmpeg invocation. It performs no I/O
// and does not validate cfg; validation belongs to the domain layer.
//
// Ordering:
//
//	ffmpeg <global> <input opts> -i <source> <video> <audio> <hls muxer> <playlist>
func Build(cfg transcode.Config) CommandSpec {
	playlist := filepath.Join(cfg.OutputDir, PlaylistName)

	b := NewBuilder(cfg.Binary)

	// --- Global ---
	b.WithFlag("-hide_banner").
		WithStringFlag("-loglevel", "warning").
		WithFlag("-nostdin")

	// --- Input ---
	b.WithStringFlag("-rtsp_transport", cfg.Transport.String()).
		WithStringFlag("-i", cfg.SourceURL)

	// --- Video ---
	switch cfg.VideoMode {
	case transcode.VideoModeLowLatency:
		b.WithStringFlag("-c:v", "libx264").
			WithStringFlag("-preset", lowLatencyPreset).
			WithStringFlag("-tune", lowLatencyTune).
			WithIntFlag("-g", lowLatencyGOP).
			WithIntFlag("-keyint_min", lowLatencyGOP).
			WithIntFlag("-sc_threshold", 0).
			WithStringFlag("-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", cfg.SegmentDuration))
	default:
		b.WithStringFlag("-c:v", "copy")
	}

	// --- Audio ---
	b.WithStringFlag("-c:a", audioCodec).
		WithStringFlag("-b:a", audioBitrate).
		WithIntFlag("-ar", audioSampleRate).
		WithIntFlag("-ac", audioChannels)

	// --- HLS muxer ---
	b.WithStringFlag("-f", "hls").
		WithIntFlag("-hls_time", cfg.SegmentDuration).
		WithIntFlag("-hls_list_size", cfg.WindowSize).
		WithJoinedFlag("-hls_flags", hlsFlags...).
		WithStringFlag("-hls_delete_threshold", strconv.Itoa(deleteThreshold)).
		WithStringFlag("-hls_segment_filename", filepath.Join(cfg.OutputDir, SegmentPattern)).
		WithString(playlist)

	return CommandSpec{
		Argv:         b.BuildArgv(),
		PlaylistPath: playlist,
	}
}
