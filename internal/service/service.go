// Package service ties source resolution, the cache and the upstream
// clients together into the operations the CLI and the countdown use.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/smokyabdulrahman/salahnow/internal/api"
	"github.com/smokyabdulrahman/salahnow/internal/cache"
	"github.com/smokyabdulrahman/salahnow/internal/geo"
	"github.com/smokyabdulrahman/salahnow/internal/prayer"
	"github.com/smokyabdulrahman/salahnow/internal/source"
)

// WindowDays is the length of the multi-day schedule.
const WindowDays = 30

const (
	defaultWarmupTimeout = 30 * time.Second
	// fetchTimeout bounds a shared upstream fetch, which outlives the
	// caller that started it.
	fetchTimeout = 30 * time.Second
)

// DistrictFetcher is implemented by *api.DistrictClient.
type DistrictFetcher interface {
	TodayAndTomorrowFajr(ctx context.Context, districtID string, now time.Time) (prayer.ResolvedDay, string, error)
	TomorrowFajr(ctx context.Context, districtID string, now time.Time) (string, error)
	Window(ctx context.Context, districtID string, start time.Time, days int) ([]prayer.DailyEntry, error)
}

// CoordinateFetcher is implemented by *api.CoordinateClient.
type CoordinateFetcher interface {
	Today(ctx context.Context, lat, lon float64, now time.Time) (prayer.ResolvedDay, error)
	TomorrowFajr(ctx context.Context, lat, lon float64, now time.Time) (string, error)
	Window(ctx context.Context, lat, lon float64, start time.Time, days int) ([]prayer.DailyEntry, error)
}

// Result is a resolved schedule for today.
type Result struct {
	Day        prayer.Day
	Resolution source.Resolution
	// Date is the observer-local YYYY-MM-DD the schedule belongs to.
	Date string
	// Stale is set when an outdated cache entry was served because the
	// upstream could not be reached.
	Stale bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTimezoneLookup replaces the coordinate to zone lookup.
func WithTimezoneLookup(fn func(lat, lon float64) (string, error)) Option {
	return func(s *Service) { s.zoneAt = fn }
}

// WithWarmup toggles background window warm-up after a daily fetch.
func WithWarmup(enabled bool, timeout time.Duration) Option {
	return func(s *Service) {
		s.warmup = enabled
		if timeout > 0 {
			s.warmupTimeout = timeout
		}
	}
}

// Service fetches prayer schedules through the cache.
type Service struct {
	district   DistrictFetcher
	coordinate CoordinateFetcher
	cache      *cache.Cache
	log        zerolog.Logger

	now           func() time.Time
	zoneAt        func(lat, lon float64) (string, error)
	warmup        bool
	warmupTimeout time.Duration

	group   singleflight.Group
	warming sync.WaitGroup
}

// New creates a Service. c may wrap a nil store but must not be nil.
func New(district DistrictFetcher, coordinate CoordinateFetcher, c *cache.Cache, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		district:      district,
		coordinate:    coordinate,
		cache:         c,
		log:           log,
		now:           time.Now,
		zoneAt:        geo.TimezoneAt,
		warmup:        true,
		warmupTimeout: defaultWarmupTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchPrayerTimes returns today's schedule for loc. A fresh cache entry is
// served as is; otherwise the upstream is queried and the result cached.
// When the upstream is unreachable any older entry is served as stale.
func (s *Service) FetchPrayerTimes(ctx context.Context, loc geo.Location, requested source.Source) (Result, error) {
	res, err := source.Resolve(loc, requested)
	if err != nil {
		return Result{}, err
	}

	key := cache.Key(loc, res.Source)
	now := s.now()

	if e, ok := s.cache.Daily(ctx, key, now); ok {
		s.log.Debug().Str("key", key).Msg("daily cache hit")
		return Result{Day: e.Day(), Resolution: res, Date: e.Date}, nil
	}

	v, err := s.shared(ctx, "daily:"+key, func(ctx context.Context) (any, error) {
		return s.fetchDaily(ctx, loc, res, key, now)
	})
	if err == nil {
		e := v.(cache.DailyEntry)
		return Result{Day: e.Day(), Resolution: res, Date: e.Date}, nil
	}

	if errors.Is(err, api.ErrUpstreamUnreachable) {
		if e, ok := s.cache.StaleDaily(ctx, key); ok {
			s.log.Warn().Err(err).Str("key", key).Str("date", e.Date).Msg("serving stale prayer times")
			return Result{Day: e.Day(), Resolution: res, Date: e.Date, Stale: true}, nil
		}
	}
	return Result{}, fmt.Errorf("prayer times unavailable: %w", err)
}

// FetchTomorrowFajr returns tomorrow's dawn time, from the cache when
// today's entry carries it.
func (s *Service) FetchTomorrowFajr(ctx context.Context, loc geo.Location, requested source.Source) (string, error) {
	res, err := source.Resolve(loc, requested)
	if err != nil {
		return "", err
	}

	key := cache.Key(loc, res.Source)
	now := s.now()

	if e, ok := s.cache.Daily(ctx, key, now); ok && e.TomorrowFajr != "" {
		return e.TomorrowFajr, nil
	}

	v, err := s.shared(ctx, "fajr:"+key, func(ctx context.Context) (any, error) {
		if res.Source == source.District {
			return s.district.TomorrowFajr(ctx, res.DistrictID, now)
		}
		return s.coordinate.TomorrowFajr(ctx, loc.Latitude, loc.Longitude, now)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// FetchWindow returns the cached 30-day window covering today, fetching a
// new one starting today when needed. An unreachable upstream falls back to
// any older window.
func (s *Service) FetchWindow(ctx context.Context, loc geo.Location, requested source.Source) ([]prayer.DailyEntry, error) {
	res, err := source.Resolve(loc, requested)
	if err != nil {
		return nil, err
	}

	key := cache.Key(loc, res.Source)
	now := s.now()

	if e, ok := s.cache.Window(ctx, key, now); ok {
		s.log.Debug().Str("key", key).Msg("window cache hit")
		return e.Entries, nil
	}

	e, err := s.fetchWindow(ctx, loc, res, key, now)
	if err == nil {
		return e.Entries, nil
	}

	if errors.Is(err, api.ErrUpstreamUnreachable) {
		if e, ok := s.cache.StaleWindow(ctx, key); ok {
			s.log.Warn().Err(err).Str("key", key).Str("start", e.StartDate).Msg("serving stale window")
			return e.Entries, nil
		}
	}
	return nil, fmt.Errorf("monthly prayer times unavailable: %w", err)
}

// Wait blocks until background warm-ups have finished.
func (s *Service) Wait() {
	s.warming.Wait()
}

func (s *Service) fetchDaily(ctx context.Context, loc geo.Location, res source.Resolution, key string, now time.Time) (cache.DailyEntry, error) {
	s.log.Debug().Str("key", key).Str("source", string(res.Source)).Msg("fetching prayer times")

	var (
		day          prayer.ResolvedDay
		tomorrowFajr string
		err          error
	)
	if res.Source == source.District {
		day, tomorrowFajr, err = s.district.TodayAndTomorrowFajr(ctx, res.DistrictID, now)
		if err != nil {
			return cache.DailyEntry{}, err
		}
	} else {
		day, err = s.coordinate.Today(ctx, loc.Latitude, loc.Longitude, now)
		if err != nil {
			return cache.DailyEntry{}, err
		}
		tomorrowFajr, err = s.coordinate.TomorrowFajr(ctx, loc.Latitude, loc.Longitude, now)
		if err != nil {
			return cache.DailyEntry{}, err
		}
		if day.TimeZone == "" {
			day.TimeZone = s.timezoneFor(loc)
		}
	}

	entry := cache.DailyEntry{
		Times:        day.Times,
		TomorrowFajr: tomorrowFajr,
		Date:         cache.DayString(now),
		Location:     key,
		TimeZone:     day.TimeZone,
	}
	_ = s.cache.PutDaily(ctx, key, entry)

	if s.warmup {
		s.warm(ctx, loc, res, key)
	}
	return entry, nil
}

func (s *Service) fetchWindow(ctx context.Context, loc geo.Location, res source.Resolution, key string, now time.Time) (cache.WindowEntry, error) {
	v, err := s.shared(ctx, "window:"+key, func(ctx context.Context) (any, error) {
		s.log.Debug().Str("key", key).Str("source", string(res.Source)).Msg("fetching window")

		var (
			entries []prayer.DailyEntry
			err     error
		)
		if res.Source == source.District {
			entries, err = s.district.Window(ctx, res.DistrictID, now, WindowDays)
		} else {
			entries, err = s.coordinate.Window(ctx, loc.Latitude, loc.Longitude, now, WindowDays)
		}
		if err != nil {
			return cache.WindowEntry{}, err
		}

		e, err := cache.NewWindowEntry(key, entries)
		if err != nil {
			return cache.WindowEntry{}, fmt.Errorf("%w: %w", api.ErrMalformedResponse, err)
		}
		_ = s.cache.PutWindow(ctx, key, e)
		return e, nil
	})
	if err != nil {
		return cache.WindowEntry{}, err
	}
	return v.(cache.WindowEntry), nil
}

// shared runs fn once per key for all concurrent callers. fn runs detached
// from every caller's cancellation; each caller still stops waiting when its
// own ctx is done.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// warm refreshes the window in the background, detached from the caller's
// cancellation. Failures are only logged.
func (s *Service) warm(parent context.Context, loc geo.Location, res source.Resolution, key string) {
	s.warming.Add(1)
	go func() {
		defer s.warming.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.warmupTimeout)
		defer cancel()

		now := s.now()
		if _, ok := s.cache.Window(ctx, key, now); ok {
			return
		}
		if _, err := s.fetchWindow(ctx, loc, res, key, now); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("window warm-up failed")
			return
		}
		s.log.Debug().Str("key", key).Msg("window warmed")
	}()
}

func (s *Service) timezoneFor(loc geo.Location) string {
	if loc.TimeZone != "" {
		return loc.TimeZone
	}
	if s.zoneAt == nil || !loc.HasCoordinates() {
		return ""
	}
	tz, err := s.zoneAt(loc.Latitude, loc.Longitude)
	if err != nil {
		s.log.Debug().Err(err).Msg("timezone lookup failed")
		return ""
	}
	return tz
}

// Locate returns the observer's location: a detection younger than 24h from
// the cache, else a fresh detection. Failed detection yields the default
// location, which is not cached.
func (s *Service) Locate(ctx context.Context, detect geo.DetectFunc) geo.Location {
	now := s.now()
	if loc, ok := s.cache.LoadGeo(ctx, now); ok {
		return loc
	}

	loc, err := geo.Acquire(ctx, detect)
	if err != nil {
		s.log.Warn().Err(err).Str("fallback", loc.String()).Msg("location detection failed")
		return loc
	}
	_ = s.cache.SaveGeo(ctx, loc, now)
	return loc
}
