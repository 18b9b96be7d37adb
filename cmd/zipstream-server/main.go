package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anacrolix/tagflag"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ahamlinman/zipstream/internal/api"
	"github.com/ahamlinman/zipstream/internal/config"
	"github.com/ahamlinman/zipstream/internal/log"
	"github.com/ahamlinman/zipstream/internal/session"
)

// How long in-flight requests get to finish once the server starts shutting
// down. Archive streams are cancelled right away, so this mostly covers
// index and RPC requests.
const shutdownGrace = 5 * time.Second

// flags override the settings read from the environment.
type flags struct {
	Logging   bool          `name:"logging" help:"Log informational messages"`
	Delay     time.Duration `name:"delay" help:"Pause after each chunk of an archive"`
	PhotosDir string        `name:"photos-dir" help:"Directory holding one subdirectory per archive"`
	Port      int           `name:"port" help:"HTTP listen port"`
	ChunkSize tagflag.Bytes `name:"chunk-size" help:"Maximum size of each write to a client"`
	IndexFile string        `name:"index-file" help:"Page served at /"`
	Archiver  string        `name:"archiver" help:"How archives are built: exec or memory"`
}

func flagsFromConfig(c config.Config) flags {
	return flags{
		Logging:   c.Logging,
		Delay:     c.Delay,
		PhotosDir: c.PhotosDir,
		Port:      c.Port,
		ChunkSize: tagflag.Bytes(c.ChunkSize),
		IndexFile: c.IndexFile,
		Archiver:  string(c.Archiver),
	}
}

func (f flags) config() config.Config {
	return config.Config{
		Logging:   f.Logging,
		Delay:     f.Delay,
		PhotosDir: f.PhotosDir,
		Port:      f.Port,
		ChunkSize: int(f.ChunkSize.Int64()),
		IndexFile: f.IndexFile,
		Archiver:  config.Archiver(f.Archiver),
	}
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "zipstream-server: %v\n", err)
		os.Exit(2)
	}

	logger := log.New(cfg.Logging)
	if err := run(cfg, logger); err != nil {
		logger.Errorf("Server failed: %v", err)
		os.Exit(1)
	}
}

// loadConfig builds the configuration from .env, the environment, and the
// command line, in increasing order of precedence.
func loadConfig() (config.Config, error) {
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		return config.Config{}, err
	}

	f := flagsFromConfig(cfg)
	tagflag.Parse(&f)
	cfg = f.config()
	return cfg, cfg.Validate()
}

func run(cfg config.Config, logger log.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sessions, err := session.NewRegistry(registry)
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Options{
		Config:   cfg,
		Sessions: sessions,
		Logger:   logger,
		Gatherer: registry,
	})

	baseCtx, stopRequests := context.WithCancelCause(context.Background())
	defer stopRequests(nil)
	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Warnf("Serving %s on %s", cfg.PhotosDir, server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Warnf("Shutting down")
	stopRequests(api.ErrShutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
