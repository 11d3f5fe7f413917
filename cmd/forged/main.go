package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"forged/internal/config"
	"forged/internal/controller"
	"forged/internal/detect"
	"forged/internal/engine"
	"forged/internal/httpapi"
	"forged/internal/profile"
)

func main() {
	// Flags with environment variable defaults
	addr := flag.String("addr", envStr("FORGED_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	cfgPath := flag.String("config", envStr("FORGED_CONFIG", ""), "Optional config file (yaml/json/toml)")
	profilesPath := flag.String("profiles", envStr("FORGED_PROFILES", ""), "Path to sku_profiles.yaml (empty uses built-in defaults)")
	forcedSKU := flag.String("sku", envStr("FORGED_SKU", ""), "Force a SKU id and skip hardware detection")
	autodetect := flag.Bool("autodetect", envBool("FORGED_SKU_AUTODETECT", true), "Detect the hardware SKU at startup")
	queueTimeout := flag.Duration("queue-timeout", 0, "Max time a request may wait in the admission queue (0=default)")
	logLevel := flag.String("log-level", envStr("FORGED_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	simulate := flag.Bool("simulate", false, "Auto-complete sessions with a simulated engine (dev only)")
	maxBody := flag.Int64("max-body-bytes", envInt64("FORGED_MAX_BODY_BYTES", 1<<20), "Maximum JSON request body size in bytes")
	corsOrigins := flag.String("cors-origins", envStr("FORGED_CORS_ORIGINS", ""), "Comma-separated allowed CORS origins (empty disables CORS)")
	flag.Parse()

	logger := newLogger(*logLevel)

	// Optional config file; flags win over file values.
	if *cfgPath != "" {
		fileCfg, err := config.Load(*cfgPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *cfgPath).Msg("load config")
		}
		applyFileConfig(fileCfg, addr, profilesPath, forcedSKU, autodetect, queueTimeout, logLevel)
		logger = newLogger(*logLevel)
	}

	cat, err := profile.LoadFile(*profilesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load profile catalog")
	}

	// Profile selection happens exactly once; switching requires a restart.
	prof, err := detect.ResolveProfile(cat, detect.NewNvidiaSMI(), detect.Options{
		ForcedSKU:  *forcedSKU,
		Autodetect: *autodetect,
	}, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolve hardware profile")
	}
	logger.Info().
		Str("sku", prof.SKUID).
		Int64("usable_bytes", prof.UsableBytes()).
		Int("max_sessions", prof.MaxConcurrentSessions).
		Str("policy", string(prof.SchedulerPolicy)).
		Msg("active hardware profile")

	eng := engine.NewSimulated()
	if *simulate {
		eng.Base = 200 * time.Millisecond
		eng.PerToken = time.Millisecond
	}
	ctrl, err := controller.New(controller.Config{
		Profile:      prof,
		Engine:       eng,
		QueueTimeout: *queueTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("construct admission controller")
	}
	if *simulate {
		eng.SetCompletionFunc(func(id string) { _ = ctrl.Complete(id) })
	}
	ctrl.Start()
	defer ctrl.Close()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(logger)
	httpapi.SetMaxBodyBytes(*maxBody)
	if *corsOrigins != "" {
		httpapi.SetCORSOptions(true,
			strings.Split(*corsOrigins, ","),
			[]string{"GET", "POST", "DELETE", "OPTIONS"},
			[]string{"Accept", "Content-Type"})
	}

	mux := httpapi.NewMux(ctrl)
	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", *addr).Msg("forged listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// applyFileConfig fills in values the command line left at their defaults.
func applyFileConfig(fc config.Config, addr, profilesPath, forcedSKU *string, autodetect *bool, queueTimeout *time.Duration, logLevel *string) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["addr"] && fc.Addr != "" {
		*addr = fc.Addr
	}
	if !set["profiles"] && fc.ProfilesPath != "" {
		*profilesPath = fc.ProfilesPath
	}
	if !set["sku"] && fc.ForcedSKU != "" {
		*forcedSKU = fc.ForcedSKU
	}
	if !set["autodetect"] && fc.Autodetect != nil {
		*autodetect = *fc.Autodetect
	}
	if !set["queue-timeout"] && fc.QueueTimeoutMS > 0 {
		*queueTimeout = time.Duration(fc.QueueTimeoutMS) * time.Millisecond
	}
	if !set["log-level"] && fc.LogLevel != "" {
		*logLevel = fc.LogLevel
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
