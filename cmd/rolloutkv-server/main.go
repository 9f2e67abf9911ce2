package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/yndnr/rolloutkv/internal/engine"
	"github.com/yndnr/rolloutkv/internal/infra/buildinfo"
	"github.com/yndnr/rolloutkv/internal/infra/confloader"
	"github.com/yndnr/rolloutkv/internal/infra/shutdown"
	"github.com/yndnr/rolloutkv/internal/infra/tlsroots"
	"github.com/yndnr/rolloutkv/internal/server/config"
	"github.com/yndnr/rolloutkv/internal/server/httpserver"
	"github.com/yndnr/rolloutkv/internal/storage"
	"github.com/yndnr/rolloutkv/internal/telemetry/logger"
	"github.com/yndnr/rolloutkv/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		_           = flag.String("addr", "", "HTTP listen address (overrides server.http.addr)")
		_           = flag.String("backend", "", "Storage backend: badger, sqlite or memory (overrides storage.backend)")
		_           = flag.String("data-dir", "", "Data directory (overrides storage.data_dir)")
		_           = flag.String("log-level", "", "Log level (overrides log.level)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("rolloutkv-server %s\n", buildinfo.String())
		return nil
	}

	loader := newLoader(*configFile, flagOverrides(flag.CommandLine))
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting rolloutkv-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	metrics := metric.NewRegistry()

	registry, err := initEngine(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Registry:           registry,
		Logger:             log,
		Metrics:            metrics,
		AdminKeyHash:       cfg.Security.AdminKeyHash,
		RateLimit:          cfg.Server.HTTP.RateLimit,
		RateBurst:          cfg.Server.HTTP.RateBurst,
		CORSAllowedOrigins: cfg.Server.HTTP.CORSAllowedOrigins,
		EnableAudit:        cfg.Server.HTTP.Audit,
	})
	if cfg.Security.AdminKeyHash == "" {
		log.Warn("admin key hash not configured, admin API disabled")
	}

	serverOpts := httpserver.Options{
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}

	shutdownHandler := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout)

	if cfg.Server.HTTP.TLSCertFile != "" {
		certWatcher, err := tlsroots.NewWatcher(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			tlsroots.WithLogger(log.With("component", "tls")))
		if err != nil {
			return fmt.Errorf("load tls certificate: %w", err)
		}
		serverOpts.TLSConfig = certWatcher.ServerConfig()

		watchCtx, stopWatch := context.WithCancel(context.Background())
		go func() {
			if err := certWatcher.Run(watchCtx); err != nil {
				log.Error("certificate watcher stopped", "error", err)
			}
		}()
		shutdownHandler.OnShutdown(func(context.Context) error {
			stopWatch()
			return nil
		})
	}

	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router, serverOpts)

	// Hooks run in reverse order: stop accepting requests before closing
	// the instances they address.
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing engine instances", "count", registry.Len())
		return registry.Close()
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	if cfg.Config.Watch && *configFile != "" {
		watcher, err := watchConfig(loader, log)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		watchCtx, stopWatch := context.WithCancel(context.Background())
		go func() {
			if err := watcher.Run(watchCtx); err != nil {
				log.Error("configuration watcher stopped", "error", err)
			}
		}()
		shutdownHandler.OnShutdown(func(context.Context) error {
			stopWatch()
			return nil
		})
	}

	go func() {
		log.Info("HTTP server listening",
			"addr", httpServer.Addr(),
			"tls", httpServer.TLSEnabled())
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger("http server failed")
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	reason, err := shutdownHandler.Wait()
	if err != nil {
		log.Error("shutdown error", "reason", reason, "error", err)
		return err
	}

	log.Info("server stopped gracefully", "reason", reason)
	return nil
}

// overrideKeys maps server flags to the configuration keys they replace.
var overrideKeys = map[string]string{
	"addr":      "server.http.addr",
	"backend":   "storage.backend",
	"data-dir":  "storage.data_dir",
	"log-level": "log.level",
}

// flagOverrides collects the override flags set on the command line.
func flagOverrides(fs *flag.FlagSet) confloader.Overrides {
	o := confloader.Overrides{}
	fs.Visit(func(f *flag.Flag) {
		if key, ok := overrideKeys[f.Name]; ok {
			o.Set(key, f.Value.String())
		}
	})
	return o
}

func newLoader(configFile string, overrides confloader.Overrides) *confloader.Loader {
	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	return confloader.NewLoader(opts...)
}

// loadConfig loads configuration from file, environment and flags over
// the defaults and validates it.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger builds the process logger and installs it as the slog default.
func initLogger(cfg *config.ServerConfig) (*slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	slog.SetDefault(log)
	return log, nil
}

// initEngine opens the instance registry over the configured backend.
func initEngine(cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Registry) (*engine.Registry, error) {
	factory, err := storage.NewFactory(config.ToKVConfig(cfg), log)
	if err != nil {
		return nil, err
	}

	registry := engine.NewRegistry(factory,
		engine.WithLogger(log),
		engine.WithMetrics(metrics))

	if err := metrics.Registerer().Register(metric.NewCollector(registry.StorageSamples)); err != nil {
		return nil, fmt.Errorf("register storage collector: %w", err)
	}

	log.Info("engine ready",
		"backend", cfg.Storage.Backend,
		"data_dir", cfg.Storage.DataDir)
	return registry, nil
}

// watchConfig reloads the log level whenever the configuration file
// changes. Other settings need a restart.
func watchConfig(loader *confloader.Loader, log *slog.Logger) (*confloader.Watcher, error) {
	return confloader.NewWatcher(loader.FilePath(), func(path string) {
		cfg := config.Default()
		if err := loader.Load(cfg); err != nil {
			log.Warn("config reload failed", "file", path, "error", err)
			return
		}
		if err := config.Verify(cfg); err != nil {
			log.Warn("reloaded config rejected", "file", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.Level() {
			log.Info("log level changed", "from", logger.Level(), "to", cfg.Log.Level)
			if err := logger.SetLevel(cfg.Log.Level); err != nil {
				log.Warn("log level not applied", "error", err)
			}
		}
	}, confloader.WithWatcherLogger(log.With("component", "config")))
}
