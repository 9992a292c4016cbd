package transcode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		SourceURL: "rtsp://cam.local:554/stream1",
		OutputDir: "/var/lib/rtsp2hls/hls",
	}.WithDefaults()
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	assert.Equal(t, "ffmpeg", c.Binary)
	assert.Equal(t, 2, c.SegmentDuration)
	assert.Equal(t, 6, c.WindowSize)
	assert.Equal(t, VideoModeCopy, c.VideoMode)
	assert.Equal(t, TransportTCP, c.Transport)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"empty source", func(c *Config) { c.SourceURL = "" }, "source_url"},
		{"file source", func(c *Config) { c.SourceURL = "/dev/video0" }, "missing protocol"},
		{"rtsp without host", func(c *Config) { c.SourceURL = "rtsp:///stream" }, "missing host"},
		{"bad port", func(c *Config) { c.SourceURL = "rtsp://cam:70000/x" }, "bad port"},
		{"no output dir", func(c *Config) { c.OutputDir = " " }, "output_dir"},
		{"zero segment", func(c *Config) { c.SegmentDuration = 0 }, "segment_duration"},
		{"negative window", func(c *Config) { c.WindowSize = -1 }, "window_size"},
		{"unknown video mode", func(c *Config) { c.VideoMode = 9 }, "video_mode"},
		{"unknown transport", func(c *Config) { c.Transport = 9 }, "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestEnums_TextRoundTrip(t *testing.T) {
	raw, err := json.Marshal(validConfig())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"video_mode":"copy"`)
	assert.Contains(t, string(raw), `"transport":"tcp"`)

	var c Config
	require.NoError(t, json.Unmarshal([]byte(`{"video_mode":"low_latency","transport":"UDP"}`), &c))
	assert.Equal(t, VideoModeLowLatency, c.VideoMode)
	assert.Equal(t, TransportUDP, c.Transport)

	assert.Error(t, json.Unmarshal([]byte(`{"transport":"sctp"}`), &c))
}
