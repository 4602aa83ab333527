package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/smokyabdulrahman/salahnow/internal/prayer"
)

const (
	// UpstreamCoordinate names the Al Adhan source in errors and logs.
	UpstreamCoordinate = "aladhan"

	defaultCoordinateBaseURL = "https://api.aladhan.com/v1"

	// DefaultMethod is the Muslim World League calculation method.
	DefaultMethod = 3
	// DefaultSchool selects the Hanafi Asr shadow ratio.
	DefaultSchool = 1
)

// CoordinateClient fetches computed prayer times for a latitude/longitude
// from the Al Adhan API.
type CoordinateClient struct {
	http *resty.Client
	// BaseURL is the API base URL. Exported for testing with httptest.
	BaseURL string
	// Method and School are sent with every request. Negative values are
	// omitted so the upstream applies its own default.
	Method int
	School int
}

// NewCoordinateClient creates a client with the default method and school.
func NewCoordinateClient() *CoordinateClient {
	return &CoordinateClient{
		http:    newHTTPClient(),
		BaseURL: defaultCoordinateBaseURL,
		Method:  DefaultMethod,
		School:  DefaultSchool,
	}
}

// Today returns the slots for the day containing now, plus the upstream's
// reported IANA zone (possibly empty).
func (c *CoordinateClient) Today(ctx context.Context, lat, lon float64, now time.Time) (prayer.ResolvedDay, error) {
	resp, err := c.timings(ctx, lat, lon, now)
	if err != nil {
		return prayer.ResolvedDay{}, fmt.Errorf("fetch today: %w", err)
	}
	times, err := resp.Data.Timings.times()
	if err != nil {
		return prayer.ResolvedDay{}, fmt.Errorf("fetch today: %w", malformed(UpstreamCoordinate, err))
	}
	return prayer.ResolvedDay{Times: times, TimeZone: resp.Data.Meta.Timezone}, nil
}

// TomorrowFajr returns the dawn time for the day after now.
func (c *CoordinateClient) TomorrowFajr(ctx context.Context, lat, lon float64, now time.Time) (string, error) {
	resp, err := c.timings(ctx, lat, lon, now.AddDate(0, 0, 1))
	if err != nil {
		return "", fmt.Errorf("fetch tomorrow's Fajr: %w", err)
	}
	fajr, err := prayer.NormalizeClock(resp.Data.Timings.Fajr)
	if err != nil {
		return "", fmt.Errorf("fetch tomorrow's Fajr: %w", malformed(UpstreamCoordinate, err))
	}
	return fajr, nil
}

// Month returns every day of the given calendar month.
func (c *CoordinateClient) Month(ctx context.Context, lat, lon float64, year int, month time.Month) ([]prayer.DailyEntry, error) {
	endpoint := fmt.Sprintf("%s/calendar/%d/%d", c.BaseURL, year, int(month))
	body, err := get(ctx, c.http, UpstreamCoordinate, endpoint, c.params(lat, lon))
	if err != nil {
		return nil, err
	}

	var resp calendarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(UpstreamCoordinate, fmt.Errorf("failed to decode calendar response: %w", err))
	}
	if resp.Code != 200 {
		return nil, malformed(UpstreamCoordinate, fmt.Errorf("API error: code=%d status=%s", resp.Code, resp.Status))
	}

	entries := make([]prayer.DailyEntry, 0, len(resp.Data))
	for _, d := range resp.Data {
		e, err := d.entry()
		if err != nil {
			return nil, malformed(UpstreamCoordinate, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Window returns days consecutive entries starting at start's calendar date.
// A window crossing a month boundary fetches both months.
func (c *CoordinateClient) Window(ctx context.Context, lat, lon float64, start time.Time, days int) ([]prayer.DailyEntry, error) {
	first := dayOf(start)
	last := first.AddDate(0, 0, days-1)

	var all []prayer.DailyEntry
	for m := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(last); m = m.AddDate(0, 1, 0) {
		entries, err := c.Month(ctx, lat, lon, m.Year(), m.Month())
		if err != nil {
			return nil, fmt.Errorf("fetch window: %w", err)
		}
		all = append(all, entries...)
	}

	window := filterWindow(all, first, days)
	if len(window) == 0 || window[0].Date != prayer.FormatDate(first) {
		return nil, fmt.Errorf("fetch window: %w", dateNotFound(UpstreamCoordinate, prayer.FormatDate(first)))
	}
	return window, nil
}

func (c *CoordinateClient) timings(ctx context.Context, lat, lon float64, at time.Time) (*timingsResponse, error) {
	endpoint := fmt.Sprintf("%s/timings/%d", c.BaseURL, at.Unix())
	body, err := get(ctx, c.http, UpstreamCoordinate, endpoint, c.params(lat, lon))
	if err != nil {
		return nil, err
	}

	var resp timingsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(UpstreamCoordinate, fmt.Errorf("failed to decode API response: %w", err))
	}
	if resp.Code != 200 {
		return nil, malformed(UpstreamCoordinate, fmt.Errorf("API error: code=%d status=%s", resp.Code, resp.Status))
	}
	return &resp, nil
}

func (c *CoordinateClient) params(lat, lon float64) map[string]string {
	p := map[string]string{
		"latitude":  strconv.FormatFloat(lat, 'f', 6, 64),
		"longitude": strconv.FormatFloat(lon, 'f', 6, 64),
	}
	if c.Method >= 0 {
		p["method"] = strconv.Itoa(c.Method)
	}
	if c.School >= 0 {
		p["school"] = strconv.Itoa(c.School)
	}
	return p
}
