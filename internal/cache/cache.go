// Package cache persists prayer schedules so that repeated requests, and
// requests made while an upstream is down, are served locally.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/salahnow/internal/geo"
	"github.com/smokyabdulrahman/salahnow/internal/prayer"
	"github.com/smokyabdulrahman/salahnow/internal/source"
)

const (
	dailyKey  = "salahnow-prayer-cache"
	windowKey = "salahnow-monthly-cache"
	geoKey    = "salahnow-geolocation"

	geoTTL = 24 * time.Hour

	// dayLayout is the YYYY-MM-DD form of cache dates.
	dayLayout = "2006-01-02"
)

// ErrStorageUnavailable wraps any store failure other than a miss, and
// blobs that cannot be decoded.
var ErrStorageUnavailable = errors.New("cache storage unavailable")

// DailyEntry stores one day's schedule for a location and source.
type DailyEntry struct {
	Times        prayer.Times `json:"times"`
	TomorrowFajr string       `json:"tomorrowFajr"`
	Date         string       `json:"date"` // YYYY-MM-DD, observer local
	Location     string       `json:"location"`
	TimeZone     string       `json:"timeZone,omitempty"`
}

// FreshOn reports whether the entry was written on now's local date.
func (e DailyEntry) FreshOn(now time.Time) bool {
	return e.Date == now.Format(dayLayout)
}

// Day converts the entry into engine input.
func (e DailyEntry) Day() prayer.Day {
	return prayer.Day{Times: e.Times, TomorrowFajr: e.TomorrowFajr, TimeZone: e.TimeZone}
}

// WindowEntry stores a run of consecutive days starting at StartDate.
type WindowEntry struct {
	Entries   []prayer.DailyEntry `json:"entries"`
	StartDate string              `json:"startDate"` // YYYY-MM-DD
	EndDate   string              `json:"endDate"`   // YYYY-MM-DD, inclusive
	Location  string              `json:"location"`
}

// Covers reports whether now's local date lies within [StartDate, EndDate].
func (e WindowEntry) Covers(now time.Time) bool {
	today := now.Format(dayLayout)
	return e.StartDate <= today && today <= e.EndDate
}

// NewWindowEntry builds an entry spanning the first to the last row.
func NewWindowEntry(location string, entries []prayer.DailyEntry) (WindowEntry, error) {
	if len(entries) == 0 {
		return WindowEntry{}, errors.New("empty window")
	}
	first, err := entries[0].Day()
	if err != nil {
		return WindowEntry{}, err
	}
	last, err := entries[len(entries)-1].Day()
	if err != nil {
		return WindowEntry{}, err
	}
	return WindowEntry{
		Entries:   entries,
		StartDate: first.Format(dayLayout),
		EndDate:   last.Format(dayLayout),
		Location:  location,
	}, nil
}

// DayString formats now's local date the way cache entries store it.
func DayString(now time.Time) string {
	return now.Format(dayLayout)
}

// Key builds the per-entry map key "{city}-{countryCode}-{source}".
func Key(loc geo.Location, src source.Source) string {
	return loc.Key() + "-" + string(src)
}

type geoEntry struct {
	Location geo.Location `json:"location"`
	CachedAt time.Time    `json:"cached_at"`
}

// Cache provides the daily and window namespaces over a Store. A nil store
// is valid: every read misses and every write is dropped.
type Cache struct {
	store Store
	log   zerolog.Logger
	mu    sync.Mutex
}

// New creates a Cache over store.
func New(store Store, log zerolog.Logger) *Cache {
	return &Cache{store: store, log: log}
}

// Daily returns the entry for key if it is fresh on now's date.
func (c *Cache) Daily(ctx context.Context, key string, now time.Time) (DailyEntry, bool) {
	e, ok := c.StaleDaily(ctx, key)
	if !ok || !e.FreshOn(now) {
		return DailyEntry{}, false
	}
	return e, true
}

// StaleDaily returns the entry for key regardless of its date.
func (c *Cache) StaleDaily(ctx context.Context, key string) (DailyEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var blob map[string]DailyEntry
	if !c.load(ctx, dailyKey, &blob) {
		return DailyEntry{}, false
	}
	e, ok := blob[key]
	return e, ok
}

// PutDaily stores e under key, replacing any previous entry.
func (c *Cache) PutDaily(ctx context.Context, key string, e DailyEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob := map[string]DailyEntry{}
	c.load(ctx, dailyKey, &blob)
	if blob == nil {
		blob = map[string]DailyEntry{}
	}
	blob[key] = e
	return c.save(ctx, dailyKey, blob)
}

// Window returns the entry for key if it covers now's date.
func (c *Cache) Window(ctx context.Context, key string, now time.Time) (WindowEntry, bool) {
	e, ok := c.StaleWindow(ctx, key)
	if !ok || !e.Covers(now) {
		return WindowEntry{}, false
	}
	return e, true
}

// StaleWindow returns the entry for key regardless of coverage.
func (c *Cache) StaleWindow(ctx context.Context, key string) (WindowEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var blob map[string]WindowEntry
	if !c.load(ctx, windowKey, &blob) {
		return WindowEntry{}, false
	}
	e, ok := blob[key]
	return e, ok
}

// PutWindow stores e under key, replacing any previous entry.
func (c *Cache) PutWindow(ctx context.Context, key string, e WindowEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob := map[string]WindowEntry{}
	c.load(ctx, windowKey, &blob)
	if blob == nil {
		blob = map[string]WindowEntry{}
	}
	blob[key] = e
	return c.save(ctx, windowKey, blob)
}

// LoadGeo returns the last detected location if it is younger than 24h.
func (c *Cache) LoadGeo(ctx context.Context, now time.Time) (geo.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var e geoEntry
	if !c.load(ctx, geoKey, &e) {
		return geo.Location{}, false
	}
	if now.Sub(e.CachedAt) > geoTTL {
		return geo.Location{}, false
	}
	return e.Location, true
}

// SaveGeo records a detected location.
func (c *Cache) SaveGeo(ctx context.Context, loc geo.Location, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, geoKey, geoEntry{Location: loc, CachedAt: now})
}

// load decodes the blob at key into v. It reports false on a miss or on any
// failure, logging failures.
func (c *Cache) load(ctx context.Context, key string, v any) bool {
	if c.store == nil {
		return false
	}

	data, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		c.log.Warn().Err(fmt.Errorf("%w: %w", ErrStorageUnavailable, err)).Str("key", key).Msg("cache read failed")
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		c.log.Warn().Err(fmt.Errorf("%w: %w", ErrStorageUnavailable, err)).Str("key", key).Msg("corrupt cache blob ignored")
		return false
	}
	return true
}

func (c *Cache) save(ctx context.Context, key string, v any) error {
	if c.store == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := c.store.Set(ctx, key, data); err != nil {
		err = fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return err
	}
	return nil
}
