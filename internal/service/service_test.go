package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/salahnow/internal/api"
	"github.com/smokyabdulrahman/salahnow/internal/cache"
	"github.com/smokyabdulrahman/salahnow/internal/geo"
	"github.com/smokyabdulrahman/salahnow/internal/prayer"
	"github.com/smokyabdulrahman/salahnow/internal/source"
)

var (
	istanbul = geo.Location{City: "Istanbul", Country: "Türkiye", CountryCode: "TR", Latitude: 41.0082, Longitude: 28.9784, DistrictID: "9541"}
	london   = geo.Location{City: "London", Country: "United Kingdom", CountryCode: "GB", Latitude: 51.5074, Longitude: -0.1278}
)

func sampleTimes() prayer.Times {
	return prayer.Times{Fajr: "05:30", Sunrise: "07:00", Dhuhr: "13:00", Asr: "16:30", Maghrib: "19:45", Isha: "21:15"}
}

func unreachable() error {
	return &api.Error{Upstream: "test", Status: 503, Kind: api.ErrUpstreamUnreachable}
}

func rows(start time.Time, n int) []prayer.DailyEntry {
	out := make([]prayer.DailyEntry, n)
	for i := range out {
		out[i] = prayer.DailyEntry{Date: prayer.FormatDate(start.AddDate(0, 0, i)), Times: sampleTimes()}
	}
	return out
}

// fakeDistrict counts calls and fails while err is set.
type fakeDistrict struct {
	calls   atomic.Int32
	windows atomic.Int32
	gate    chan struct{}
	mu      sync.Mutex
	err     error
	ids     []string
}

func (f *fakeDistrict) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeDistrict) current() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeDistrict) TodayAndTomorrowFajr(ctx context.Context, id string, now time.Time) (prayer.ResolvedDay, string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.ids = append(f.ids, id)
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if err := f.current(); err != nil {
		return prayer.ResolvedDay{}, "", err
	}
	return prayer.ResolvedDay{Times: sampleTimes(), TimeZone: api.DistrictTimeZone}, "05:29", nil
}

func (f *fakeDistrict) TomorrowFajr(ctx context.Context, id string, now time.Time) (string, error) {
	f.calls.Add(1)
	if err := f.current(); err != nil {
		return "", err
	}
	return "05:29", nil
}

func (f *fakeDistrict) Window(ctx context.Context, id string, start time.Time, days int) ([]prayer.DailyEntry, error) {
	f.windows.Add(1)
	if err := f.current(); err != nil {
		return nil, err
	}
	return rows(start, days), nil
}

type fakeCoordinate struct {
	calls    atomic.Int32
	windows  atomic.Int32
	timeZone string
	err      error
}

func (f *fakeCoordinate) Today(ctx context.Context, lat, lon float64, now time.Time) (prayer.ResolvedDay, error) {
	f.calls.Add(1)
	if f.err != nil {
		return prayer.ResolvedDay{}, f.err
	}
	return prayer.ResolvedDay{Times: sampleTimes(), TimeZone: f.timeZone}, nil
}

func (f *fakeCoordinate) TomorrowFajr(ctx context.Context, lat, lon float64, now time.Time) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "05:31", nil
}

func (f *fakeCoordinate) Window(ctx context.Context, lat, lon float64, start time.Time, days int) ([]prayer.DailyEntry, error) {
	f.windows.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return rows(start, days), nil
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc        *Service
	district   *fakeDistrict
	coordinate *fakeCoordinate
	cache      *cache.Cache
	clock      *clock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		district:   &fakeDistrict{},
		coordinate: &fakeCoordinate{timeZone: "Europe/London"},
		cache:      cache.New(cache.NewMemoryStore(), zerolog.Nop()),
		clock:      &clock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
	opts = append([]Option{
		WithClock(f.clock.Now),
		WithWarmup(false, 0),
		WithTimezoneLookup(func(lat, lon float64) (string, error) { return "Etc/Test", nil }),
	}, opts...)
	f.svc = New(f.district, f.coordinate, f.cache, zerolog.Nop(), opts...)
	return f
}

// ---------------------------------------------------------------------------
// FetchPrayerTimes
// ---------------------------------------------------------------------------

func TestFetchPrayerTimes_DistrictFetchAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.FetchPrayerTimes(ctx, istanbul, source.District)
	if err != nil {
		t.Fatalf("FetchPrayerTimes() error: %v", err)
	}
	want := Result{
		Day:        prayer.Day{Times: sampleTimes(), TomorrowFajr: "05:29", TimeZone: "Europe/Istanbul"},
		Resolution: source.Resolution{Source: source.District, DistrictID: "9541"},
		Date:       "2024-03-10",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FetchPrayerTimes() mismatch (-want +got):\n%s", diff)
	}

	// Second call on the same day is served from the cache.
	if _, err := f.svc.FetchPrayerTimes(ctx, istanbul, source.District); err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if n := f.district.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}

	// Next day the entry is stale and refetched.
	f.clock.Set(f.clock.Now().AddDate(0, 0, 1))
	got, err = f.svc.FetchPrayerTimes(ctx, istanbul, source.District)
	if err != nil {
		t.Fatalf("next-day call error: %v", err)
	}
	if n := f.district.calls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
	if got.Date != "2024-03-11" {
		t.Errorf("Date = %q, want 2024-03-11", got.Date)
	}
}

func TestFetchPrayerTimes_NonHomeForcedToCoordinate(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.FetchPrayerTimes(context.Background(), london, source.District)
	if err != nil {
		t.Fatalf("FetchPrayerTimes() error: %v", err)
	}
	if got.Resolution.Source != source.Coordinate || !got.Resolution.Forced {
		t.Errorf("Resolution = %+v, want forced coordinate", got.Resolution)
	}
	if got.Day.TomorrowFajr != "05:31" || got.Day.TimeZone != "Europe/London" {
		t.Errorf("Day = %+v", got.Day)
	}
	if f.district.calls.Load() != 0 {
		t.Error("district source must not be called abroad")
	}
}

func TestFetchPrayerTimes_TimezoneFallback(t *testing.T) {
	f := newFixture(t)
	f.coordinate.timeZone = ""

	got, err := f.svc.FetchPrayerTimes(context.Background(), london, source.Coordinate)
	if err != nil {
		t.Fatalf("FetchPrayerTimes() error: %v", err)
	}
	if got.Day.TimeZone != "Etc/Test" {
		t.Errorf("TimeZone = %q, want lookup result", got.Day.TimeZone)
	}

	hinted := london
	hinted.City = "Hinted"
	hinted.TimeZone = "Europe/Dublin"
	got, _ = f.svc.FetchPrayerTimes(context.Background(), hinted, source.Coordinate)
	if got.Day.TimeZone != "Europe/Dublin" {
		t.Errorf("TimeZone = %q, want location hint", got.Day.TimeZone)
	}
}

func TestFetchPrayerTimes_StaleFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.FetchPrayerTimes(ctx, istanbul, source.District); err != nil {
		t.Fatalf("priming fetch error: %v", err)
	}

	f.clock.Set(f.clock.Now().AddDate(0, 0, 1))
	f.district.fail(unreachable())

	got, err := f.svc.FetchPrayerTimes(ctx, istanbul, source.District)
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if !got.Stale {
		t.Error("Stale = false, want true")
	}
	if got.Date != "2024-03-10" || got.Day.Times != sampleTimes() {
		t.Errorf("stale result = %+v, want yesterday's entry", got)
	}
}

func TestFetchPrayerTimes_UnreachableWithoutCache(t *testing.T) {
	f := newFixture(t)
	f.district.fail(unreachable())

	_, err := f.svc.FetchPrayerTimes(context.Background(), istanbul, source.District)
	if !errors.Is(err, api.ErrUpstreamUnreachable) {
		t.Fatalf("error = %v, want ErrUpstreamUnreachable", err)
	}
}

func TestFetchPrayerTimes_MalformedNotMaskedByStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.FetchPrayerTimes(ctx, istanbul, source.District)

	f.clock.Set(f.clock.Now().AddDate(0, 0, 1))
	f.district.fail(&api.Error{Upstream: "test", Kind: api.ErrMalformedResponse})

	if _, err := f.svc.FetchPrayerTimes(ctx, istanbul, source.District); !errors.Is(err, api.ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestFetchPrayerTimes_ResolutionFailure(t *testing.T) {
	f := newFixture(t)
	nowhere := geo.Location{City: "Kars", CountryCode: "TR", Latitude: 40.6, Longitude: 43.1}

	_, err := f.svc.FetchPrayerTimes(context.Background(), nowhere, source.District)
	if !errors.Is(err, source.ErrSourceResolutionFailed) {
		t.Fatalf("error = %v, want ErrSourceResolutionFailed", err)
	}
	if f.district.calls.Load()+f.coordinate.calls.Load() != 0 {
		t.Error("no upstream may be called when resolution fails")
	}
}

func TestFetchPrayerTimes_DeduplicatesInFlight(t *testing.T) {
	f := newFixture(t)
	f.district.gate = make(chan struct{})

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.FetchPrayerTimes(context.Background(), istanbul, source.District)
			errs <- err
		}()
	}

	// Let the leader reach the upstream, then release it.
	deadline := time.Now().Add(2 * time.Second)
	for f.district.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(f.district.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("caller error: %v", err)
		}
	}
	if n := f.district.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestFetchPrayerTimes_CancelledLeaderDoesNotFailFollowers(t *testing.T) {
	f := newFixture(t)
	f.district.gate = make(chan struct{})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.svc.FetchPrayerTimes(leaderCtx, istanbul, source.District)
		leaderErr <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.district.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	type outcome struct {
		res Result
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := f.svc.FetchPrayerTimes(context.Background(), istanbul, source.District)
		follower <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("leader error = %v, want context.Canceled", err)
	}

	close(f.district.gate)
	got := <-follower
	if got.err != nil {
		t.Fatalf("follower error: %v", got.err)
	}
	if got.res.Stale || got.res.Day.Times != sampleTimes() {
		t.Errorf("follower result = %+v, want fresh schedule", got.res)
	}
	if _, ok := f.cache.Daily(context.Background(), cache.Key(istanbul, source.District), f.clock.Now()); !ok {
		t.Error("shared fetch was not cached after the leader gave up")
	}
}

func TestFetchPrayerTimes_NearestDistrict(t *testing.T) {
	f := newFixture(t)
	kadikoy := geo.Location{City: "Kadıköy", CountryCode: "TR", Latitude: 40.99, Longitude: 29.03, Custom: true}

	got, err := f.svc.FetchPrayerTimes(context.Background(), kadikoy, source.District)
	if err != nil {
		t.Fatalf("FetchPrayerTimes() error: %v", err)
	}
	if got.Resolution.DistrictID != "9541" {
		t.Errorf("DistrictID = %q, want 9541", got.Resolution.DistrictID)
	}
	if len(f.district.ids) != 1 || f.district.ids[0] != "9541" {
		t.Errorf("upstream ids = %v, want [9541]", f.district.ids)
	}
}

// ---------------------------------------------------------------------------
// FetchTomorrowFajr
// ---------------------------------------------------------------------------

func TestFetchTomorrowFajr(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.FetchTomorrowFajr(ctx, istanbul, source.District)
	if err != nil || got != "05:29" {
		t.Fatalf("FetchTomorrowFajr() = %q, %v", got, err)
	}
	if f.district.calls.Load() != 1 {
		t.Errorf("uncached call count = %d, want 1", f.district.calls.Load())
	}

	f.svc.FetchPrayerTimes(ctx, istanbul, source.District)
	before := f.district.calls.Load()
	if got, _ := f.svc.FetchTomorrowFajr(ctx, istanbul, source.District); got != "05:29" {
		t.Errorf("cached FetchTomorrowFajr() = %q", got)
	}
	if f.district.calls.Load() != before {
		t.Error("cached tomorrow Fajr should not hit the upstream")
	}
}

// ---------------------------------------------------------------------------
// FetchWindow and warm-up
// ---------------------------------------------------------------------------

func TestFetchWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.FetchWindow(ctx, istanbul, source.District)
	if err != nil {
		t.Fatalf("FetchWindow() error: %v", err)
	}
	if len(got) != WindowDays || got[0].Date != "10.03.2024" {
		t.Fatalf("window = %d rows from %s", len(got), got[0].Date)
	}

	// Still covered on the last day.
	f.clock.Set(time.Date(2024, 4, 8, 23, 0, 0, 0, time.UTC))
	f.svc.FetchWindow(ctx, istanbul, source.District)
	if n := f.district.windows.Load(); n != 1 {
		t.Errorf("window fetches = %d, want 1", n)
	}

	// One day past the end a new window is fetched.
	f.clock.Set(time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC))
	got, _ = f.svc.FetchWindow(ctx, istanbul, source.District)
	if n := f.district.windows.Load(); n != 2 {
		t.Errorf("window fetches = %d, want 2", n)
	}
	if got[0].Date != "09.04.2024" {
		t.Errorf("new window starts %s, want 09.04.2024", got[0].Date)
	}
}

func TestFetchWindow_StaleFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.FetchWindow(ctx, london, source.Coordinate)

	f.clock.Set(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	f.coordinate.err = unreachable()

	got, err := f.svc.FetchWindow(ctx, london, source.Coordinate)
	if err != nil {
		t.Fatalf("expected stale window, got %v", err)
	}
	if got[0].Date != "10.03.2024" {
		t.Errorf("stale window starts %s, want 10.03.2024", got[0].Date)
	}
}

func TestWarmup_FillsWindowDetachedFromCaller(t *testing.T) {
	f := newFixture(t, WithWarmup(true, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := f.svc.FetchPrayerTimes(ctx, istanbul, source.District); err != nil {
		t.Fatalf("FetchPrayerTimes() error: %v", err)
	}
	cancel()
	f.svc.Wait()

	if _, ok := f.cache.Window(context.Background(), cache.Key(istanbul, source.District), f.clock.Now()); !ok {
		t.Error("warm-up did not persist a window")
	}
}

func TestWarmup_FailureIsNotPropagated(t *testing.T) {
	f := newFixture(t, WithWarmup(true, time.Second))
	f.coordinate.err = nil

	// Window fails, daily succeeds.
	failing := &windowFailingCoordinate{fakeCoordinate: f.coordinate}
	svc := New(f.district, failing, f.cache, zerolog.Nop(), WithClock(f.clock.Now), WithWarmup(true, time.Second))

	if _, err := svc.FetchPrayerTimes(context.Background(), london, source.Coordinate); err != nil {
		t.Fatalf("FetchPrayerTimes() error: %v", err)
	}
	svc.Wait()
	if _, ok := f.cache.Window(context.Background(), cache.Key(london, source.Coordinate), f.clock.Now()); ok {
		t.Error("failed warm-up must not write a window")
	}
}

type windowFailingCoordinate struct {
	*fakeCoordinate
}

func (w *windowFailingCoordinate) Window(context.Context, float64, float64, time.Time, int) ([]prayer.DailyEntry, error) {
	return nil, unreachable()
}

// ---------------------------------------------------------------------------
// Locate
// ---------------------------------------------------------------------------

func TestLocate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var detections atomic.Int32
	detect := func(context.Context) (geo.Location, error) {
		detections.Add(1)
		return london, nil
	}

	if got := f.svc.Locate(ctx, detect); got.City != "London" {
		t.Errorf("Locate() = %q, want London", got.City)
	}
	if got := f.svc.Locate(ctx, detect); got.City != "London" {
		t.Errorf("cached Locate() = %q, want London", got.City)
	}
	if detections.Load() != 1 {
		t.Errorf("detections = %d, want 1", detections.Load())
	}
}

func TestLocate_FallbackNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fail := func(context.Context) (geo.Location, error) { return geo.Location{}, errors.New("offline") }

	if got := f.svc.Locate(ctx, fail); got.City != "Istanbul" {
		t.Errorf("Locate() = %q, want default Istanbul", got.City)
	}
	if _, ok := f.cache.LoadGeo(ctx, f.clock.Now()); ok {
		t.Error("fallback location must not be cached")
	}
}
