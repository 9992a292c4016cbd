package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/edirooss/rtsp2hls/internal/config"
	"github.com/edirooss/rtsp2hls/internal/http/router"
	"github.com/edirooss/rtsp2hls/internal/infrastructure/metrics"
	"github.com/edirooss/rtsp2hls/internal/infrastructure/processmgr"
	"github.com/edirooss/rtsp2hls/internal/infrastructure/segmentdir"
	"github.com/edirooss/rtsp2hls/internal/repo"
	"github.com/edirooss/rtsp2hls/internal/service"
	"github.com/edirooss/rtsp2hls/pkg/ffmpegcmd"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var configPath string

func init() {
	// Handle version display
	handleVersion()
}

func main() {
	// Load config
	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Create Zap logger
	log := buildLogger(cfg.Debug)
	defer log.Sync()
	log = log.Named("main")

	if cfg.Debug {
		log.Debug("configuration\n" + spew.Sdump(cfg))
	}

	if err := run(log, cfg); err != nil {
		log.Fatal("exiting", zap.Error(err))
	}
	log.Info("bye")
}

func run(log *zap.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tc, err := cfg.Transcode()
	if err != nil {
		return fmt.Errorf("stream config: %w", err)
	}
	cmd := ffmpegcmd.Build(tc)

	// Persistence
	rp := repo.NewRepository(log, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer rp.Close()

	// Stream supervision
	mtr := metrics.New()
	segments := segmentdir.NewManager(log, tc.OutputDir)
	sup, err := processmgr.NewSupervisor(log, processmgr.Options{
		Command:         cmd,
		Dir:             segments,
		Launcher:        processmgr.NewExecLauncher(log, os.Environ()),
		Policy:          cfg.RetryPolicy(),
		StopGrace:       cfg.Restart.StopGrace,
		DiagnosticLines: cfg.Restart.DiagnosticLines,
		Observer:        mtr,
	})
	if err != nil {
		return fmt.Errorf("new supervisor: %w", err)
	}
	statussvc := service.NewStatusService(log, sup, segments, service.StatusOptions{TTL: cfg.StatusCacheTTL})

	// Overlays and uploads
	overlaysvc := service.NewOverlayService(log, rp.Overlays)
	uploadsvc := service.NewUploadService(log, cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err := uploadsvc.EnsureDir(); err != nil {
		return err
	}

	// Create Gin router
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := router.New(log, cfg.Debug, router.Deps{
		Status:         statussvc,
		Overlays:       overlaysvc,
		Uploads:        uploadsvc,
		Segments:       segments,
		Metrics:        mtr,
		PublicHLSURL:   cfg.PublicHLSURL,
		TrustedProxies: []string{"127.0.0.1"},
	})

	httpsrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,  // kills header-drip Slowloris
		ReadTimeout:       10 * time.Second, // full request read (incl. body)
		WriteTimeout:      15 * time.Second, // avoid forever-hangs on writes
		IdleTimeout:       60 * time.Second, // keep-alive cap
		MaxHeaderBytes:    1 << 20,          // 1MB cap
	}

	// A broken output directory stops the supervisor; HTTP keeps serving
	// so /api/stream/status can report it.
	if err := sup.Start(ctx); err != nil {
		log.Error("stream supervisor not started", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		log.Info("server closed")
		return nil
	})

	g.Go(func() error {
		err := segments.Watch(gctx, func(published bool) {
			statussvc.Observe(published)
			mtr.SetPublishing(published)
		})
		if err != nil {
			// status falls back to polling the directory
			log.Warn("output directory watch stopped", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpsrv.Shutdown(shCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := sup.Shutdown(shCtx); err != nil {
			errs = append(errs, fmt.Errorf("supervisor shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.StringVar(&configPath, "config", os.Getenv("RTSP2HLS_CONFIG"), "path to YAML config file")
	flag.Parse()

	if *v {
		fmt.Printf("rtsp2hls %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

// helpers

func buildLogger(debug bool) *zap.Logger {
	if !debug {
		logConfig := zap.NewProductionConfig()
		logConfig.EncoderConfig.TimeKey = "ts"
		logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		logConfig.DisableStacktrace = true
		return zap.Must(logConfig.Build())
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
