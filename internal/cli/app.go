package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/salahnow/internal/api"
	"github.com/smokyabdulrahman/salahnow/internal/cache"
	"github.com/smokyabdulrahman/salahnow/internal/config"
	"github.com/smokyabdulrahman/salahnow/internal/geo"
	"github.com/smokyabdulrahman/salahnow/internal/logging"
	"github.com/smokyabdulrahman/salahnow/internal/service"
	"github.com/smokyabdulrahman/salahnow/internal/source"
)

// detectLocation is replaced in tests.
var detectLocation geo.DetectFunc = geo.DetectLocation

// app is everything a command needs once flags and config are merged.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	svc     *service.Service
	source  source.Source
	closers []func() error
}

// newApp builds the service for cmd. Callers must call close.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		log:    logging.New(cfg.LogLevel, cmd.ErrOrStderr()),
		source: source.ParseOrDefault(cfg.Source),
	}

	store, err := a.openStore(contextOf(cmd))
	if err != nil {
		// Cache init failure is non-fatal; we just skip caching.
		a.log.Warn().Err(err).Str("backend", cfg.CacheBackend).Msg("cache disabled")
		store = nil
	}

	district := api.NewDistrictClient()
	if cfg.DistrictBaseURL != "" {
		district.BaseURL = cfg.DistrictBaseURL
	}
	coordinate := api.NewCoordinateClient()
	if cfg.CoordinateBaseURL != "" {
		coordinate.BaseURL = cfg.CoordinateBaseURL
	}
	coordinate.Method = cfg.MethodOrDefault(api.DefaultMethod)
	coordinate.School = cfg.SchoolOrDefault(api.DefaultSchool)

	a.svc = service.New(district, coordinate, cache.New(store, a.log), a.log, service.WithClock(clock))
	return a, nil
}

// openStore returns the configured backend. A nil Store with a nil error
// means caching is off.
func (a *app) openStore(ctx context.Context) (cache.Store, error) {
	dir := a.cfg.CacheDir
	if dir == "" && a.cfg.CacheBackend != "redis" && a.cfg.CacheBackend != "none" {
		d, err := cache.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	switch a.cfg.CacheBackend {
	case "none":
		return nil, nil
	case "sqlite":
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create cache directory %s: %w", dir, err)
		}
		s, err := cache.NewSQLiteStore(filepath.Join(dir, "cache.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "redis":
		s, err := cache.NewRedisStore(ctx, a.cfg.RedisAddress, a.cfg.RedisUsername, a.cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		s, err := cache.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// close waits for background warm-ups and releases the store.
func (a *app) close() {
	a.svc.Wait()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Debug().Err(err).Msg("close cache store")
		}
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
