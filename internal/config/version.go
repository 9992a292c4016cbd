package config

// Build metadata, set with -ldflags "-X github.com/edirooss/rtsp2hls/internal/config.Version=...".
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)
