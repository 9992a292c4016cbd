// Package config resolves the service configuration.
//
// Layers, lowest precedence first: built-in defaults, an optional YAML file,
// a .env file, the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/edirooss/rtsp2hls/internal/domain/transcode"
	"github.com/edirooss/rtsp2hls/internal/infrastructure/processmgr"
	"gopkg.in/yaml.v3"
)

// DefaultSourceURL is a public test feed; override with RTSP_URL.
const DefaultSourceURL = "rtsp://rtspstream.com/pattern"

type Config struct {
	Debug bool   `yaml:"debug"`
	Addr  string `yaml:"addr"`

	Stream  StreamConfig  `yaml:"stream"`
	Restart RestartConfig `yaml:"restart"`
	Redis   RedisConfig   `yaml:"redis"`
	Uploads UploadConfig  `yaml:"uploads"`

	// StatusCacheTTL bounds how stale the publishing flag may be.
	StatusCacheTTL time.Duration `yaml:"status_cache_ttl"`
	// PublicHLSURL is advertised by /api/stream-config; derived from the
	// request when empty.
	PublicHLSURL string `yaml:"public_hls_url"`
}

type StreamConfig struct {
	Binary          string `yaml:"ffmpeg"`
	SourceURL       string `yaml:"source_url"`
	OutputDir       string `yaml:"output_dir"`
	SegmentDuration int    `yaml:"segment_duration"`
	WindowSize      int    `yaml:"window_size"`
	VideoMode       string `yaml:"video_mode"`
	Transport       string `yaml:"transport"`
}

type RestartConfig struct {
	BackoffBase     time.Duration `yaml:"backoff_base"`
	BackoffMax      time.Duration `yaml:"backoff_max"`
	BackoffFactor   float64       `yaml:"backoff_factor"`
	HealthyAfter    time.Duration `yaml:"healthy_after"`
	StopGrace       time.Duration `yaml:"stop_grace"`
	DiagnosticLines int           `yaml:"diagnostic_lines"`
}

// RedisConfig selects the overlay store. An empty Addr keeps overlays in memory.
type RedisConfig struct {
	Addr     string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type UploadConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rp := processmgr.DefaultRetryPolicy()
	return &Config{
		Addr: ":5000",
		Stream: StreamConfig{
			Binary:          transcode.DefaultBinary,
			SourceURL:       DefaultSourceURL,
			OutputDir:       "hls",
			SegmentDuration: transcode.DefaultSegmentDuration,
			WindowSize:      transcode.DefaultWindowSize,
			VideoMode:       transcode.VideoModeCopy.String(),
			Transport:       transcode.TransportTCP.String(),
		},
		Restart: RestartConfig{
			BackoffBase:     rp.Base,
			BackoffMax:      rp.Max,
			BackoffFactor:   rp.Factor,
			HealthyAfter:    rp.HealthyAfter,
			StopGrace:       processmgr.DefaultStopGrace,
			DiagnosticLines: processmgr.DefaultDiagnosticLines,
		},
		Uploads: UploadConfig{
			Dir:      "static/uploads",
			MaxBytes: 5 << 20,
		},
		StatusCacheTTL: 500 * time.Millisecond,
	}
}

// Load builds the configuration. yamlPath may be empty; dotenv files that
// do not exist are skipped.
func Load(yamlPath string, dotenv ...string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if err := cfg.loadYAML(yamlPath); err != nil {
			return nil, err
		}
	}
	if err := LoadDotEnv(dotenv...); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Debug = GetEnvBool("DEBUG", c.Debug)
	c.Addr = GetEnv("HTTP_ADDR", c.Addr)
	if port := GetEnv("PORT", ""); port != "" {
		c.Addr = ":" + port
	}

	s := &c.Stream
	s.Binary = GetEnv("FFMPEG_BIN", s.Binary)
	s.SourceURL = GetEnv("RTSP_URL", s.SourceURL)
	s.OutputDir = GetEnv("HLS_OUTPUT_DIR", s.OutputDir)
	s.SegmentDuration = GetEnvInt("HLS_SEGMENT_DURATION", s.SegmentDuration)
	s.WindowSize = GetEnvInt("HLS_WINDOW_SIZE", s.WindowSize)
	s.VideoMode = GetEnv("VIDEO_MODE", s.VideoMode)
	s.Transport = GetEnv("RTSP_TRANSPORT", s.Transport)

	r := &c.Restart
	r.BackoffBase = GetEnvDuration("RESTART_BACKOFF_BASE", r.BackoffBase)
	r.BackoffMax = GetEnvDuration("RESTART_BACKOFF_MAX", r.BackoffMax)
	r.BackoffFactor = GetEnvFloat("RESTART_BACKOFF_FACTOR", r.BackoffFactor)
	r.HealthyAfter = GetEnvDuration("RESTART_HEALTHY_AFTER", r.HealthyAfter)
	r.StopGrace = GetEnvDuration("STOP_GRACE", r.StopGrace)
	r.DiagnosticLines = GetEnvInt("DIAGNOSTIC_LINES", r.DiagnosticLines)

	c.Redis.Addr = GetEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = GetEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = GetEnvInt("REDIS_DB", c.Redis.DB)

	c.Uploads.Dir = GetEnv("UPLOAD_DIR", c.Uploads.Dir)
	c.Uploads.MaxBytes = int64(GetEnvInt("UPLOAD_MAX_BYTES", int(c.Uploads.MaxBytes)))

	c.StatusCacheTTL = GetEnvDuration("STATUS_CACHE_TTL", c.StatusCacheTTL)
	c.PublicHLSURL = GetEnv("PUBLIC_HLS_URL", c.PublicHLSURL)
}

// Transcode converts the stream section into a validated transcode config.
func (c *Config) Transcode() (transcode.Config, error) {
	mode, err := transcode.ParseVideoMode(c.Stream.VideoMode)
	if err != nil {
		return transcode.Config{}, err
	}
	tr, err := transcode.ParseTransport(c.Stream.Transport)
	if err != nil {
		return transcode.Config{}, err
	}
	tc := transcode.Config{
		Binary:          c.Stream.Binary,
		SourceURL:       c.Stream.SourceURL,
		OutputDir:       c.Stream.OutputDir,
		SegmentDuration: c.Stream.SegmentDuration,
		WindowSize:      c.Stream.WindowSize,
		VideoMode:       mode,
		Transport:       tr,
	}.WithDefaults()
	if err := tc.Validate(); err != nil {
		return transcode.Config{}, err
	}
	return tc, nil
}

// RetryPolicy returns the supervisor restart policy.
func (c *Config) RetryPolicy() processmgr.RetryPolicy {
	return processmgr.RetryPolicy{
		Base:         c.Restart.BackoffBase,
		Max:          c.Restart.BackoffMax,
		Factor:       c.Restart.BackoffFactor,
		HealthyAfter: c.Restart.HealthyAfter,
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if _, err := c.Transcode(); err != nil {
		errs = append(errs, fmt.Errorf("stream: %w", err))
	}
	if c.Restart.BackoffBase <= 0 || c.Restart.BackoffMax < c.Restart.BackoffBase {
		errs = append(errs, errors.New("restart: backoff_base must be > 0 and <= backoff_max"))
	}
	if c.Restart.BackoffFactor < 1 {
		errs = append(errs, errors.New("restart: backoff_factor must be >= 1"))
	}
	if c.Uploads.Dir == "" || c.Uploads.MaxBytes <= 0 {
		errs = append(errs, errors.New("uploads: dir and max_bytes are required"))
	}
	return errors.Join(errs...)
}
