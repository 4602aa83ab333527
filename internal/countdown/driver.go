package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/salahnow/internal/cache"
	"github.com/smokyabdulrahman/salahnow/internal/geo"
	"github.com/smokyabdulrahman/salahnow/internal/service"
	"github.com/smokyabdulrahman/salahnow/internal/source"
)

const (
	defaultTickInterval = time.Second
	// refreshBackoff spaces out retries after a failed refresh, and while
	// the schedule in use is a stale cache entry.
	refreshBackoff = time.Minute
)

// Fetcher is implemented by *service.Service.
type Fetcher interface {
	FetchPrayerTimes(ctx context.Context, loc geo.Location, requested source.Source) (service.Result, error)
}

// Input identifies what a session shows.
type Input struct {
	Location geo.Location
	Source   source.Source
	Mode     Mode
}

// Driver runs at most one countdown session at a time.
type Driver struct {
	fetcher  Fetcher
	log      zerolog.Logger
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDriver creates a Driver that ticks once a second.
func NewDriver(f Fetcher, log zerolog.Logger) *Driver {
	return &Driver{
		fetcher:  f,
		log:      log,
		interval: defaultTickInterval,
		now:      time.Now,
	}
}

// SetTickInterval changes the tick period for sessions started afterwards.
func (d *Driver) SetTickInterval(interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if interval > 0 {
		d.interval = interval
	}
}

// SetClock replaces time.Now for sessions started afterwards.
func (d *Driver) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// Start stops any running session and starts a new one for in. emit is
// called from the session goroutine, never concurrently and never after
// Stop returns.
func (d *Driver) Start(ctx context.Context, in Input, emit func(State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done

	s := &session{
		fetcher:  d.fetcher,
		log:      d.log.With().Str("location", in.Location.String()).Str("source", string(in.Source)).Logger(),
		in:       in,
		now:      d.now,
		interval: d.interval,
		emit:     emit,
	}
	go func() {
		defer close(done)
		s.run(ctx)
	}()
}

// Stop cancels the running session, if any, and waits for it to exit.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// stopLocked must be called with d.mu held. Sessions never take d.mu, so
// waiting for one here cannot deadlock.
func (d *Driver) stopLocked() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
	d.cancel, d.done = nil, nil
}

type session struct {
	fetcher  Fetcher
	log      zerolog.Logger
	in       Input
	now      func() time.Time
	interval time.Duration
	emit     func(State)

	result    service.Result
	fetchedOn string // observer-local date of the last fetch attempt that succeeded
	err       error
	retryAt   time.Time
}

func (s *session) run(ctx context.Context) {
	s.emit(State{Loading: true})

	res, err := s.fetcher.FetchPrayerTimes(ctx, s.in.Location, s.in.Source)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn().Err(err).Msg("countdown fetch failed")
		s.emit(State{Err: err})
		return
	}
	s.accept(res, s.now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		now := s.now()
		if (cache.DayString(now) != s.fetchedOn || s.result.Stale) && !now.Before(s.retryAt) {
			s.refresh(ctx, now)
		}
		if ctx.Err() != nil {
			return
		}
		s.publish(now)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// refresh refetches after the observer's date has rolled over, or while the
// schedule is stale. On failure the previous schedule is kept and the error
// is carried in the state.
func (s *session) refresh(ctx context.Context, now time.Time) {
	res, err := s.fetcher.FetchPrayerTimes(ctx, s.in.Location, s.in.Source)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("countdown refresh failed, keeping last schedule")
		}
		s.err = err
		s.retryAt = now.Add(refreshBackoff)
		return
	}
	s.log.Debug().Str("date", res.Date).Bool("stale", res.Stale).Msg("countdown refreshed")
	s.accept(res, now)
	s.err = nil
}

// accept installs a fetched schedule. A stale one is retried after the
// backoff until the upstream answers again.
func (s *session) accept(res service.Result, now time.Time) {
	s.result = res
	s.fetchedOn = cache.DayString(now)
	s.retryAt = time.Time{}
	if res.Stale {
		s.retryAt = now.Add(refreshBackoff)
	}
}

func (s *session) publish(now time.Time) {
	st, err := Render(s.result.Day, s.in.Mode, now)
	if err != nil {
		s.emit(State{Err: err})
		return
	}
	st.Date = s.result.Date
	st.Stale = s.result.Stale
	st.Err = s.err
	s.emit(st)
}
