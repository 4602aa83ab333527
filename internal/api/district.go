package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/smokyabdulrahman/salahnow/internal/prayer"
)

const (
	// UpstreamDistrict names the Diyanet-style source in errors and logs.
	UpstreamDistrict = "diyanet"

	defaultDistrictBaseURL = "https://ezanvakti.emushaf.net"

	// DistrictTimeZone is the fixed zone of every district schedule.
	DistrictTimeZone = "Europe/Istanbul"
)

// DistrictClient fetches official schedules keyed by a district id. One
// request returns a dense list of days starting around today.
type DistrictClient struct {
	http *resty.Client
	// BaseURL is the API base URL. Exported for testing with httptest.
	BaseURL string
}

// NewDistrictClient creates a client pointing at the public ezanvakti mirror.
func NewDistrictClient() *DistrictClient {
	return &DistrictClient{
		http:    newHTTPClient(),
		BaseURL: defaultDistrictBaseURL,
	}
}

// Schedule returns every day the upstream publishes for the district.
func (c *DistrictClient) Schedule(ctx context.Context, districtID string) ([]prayer.DailyEntry, error) {
	districtID = strings.TrimSpace(districtID)
	if districtID == "" {
		return nil, fmt.Errorf("district id is required")
	}

	endpoint := fmt.Sprintf("%s/vakitler/%s", c.BaseURL, url.PathEscape(districtID))
	body, err := get(ctx, c.http, UpstreamDistrict, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var days []districtDay
	if err := json.Unmarshal(body, &days); err != nil {
		return nil, malformed(UpstreamDistrict, fmt.Errorf("failed to decode schedule: %w", err))
	}

	entries := make([]prayer.DailyEntry, 0, len(days))
	for _, d := range days {
		e, err := d.entry()
		if err != nil {
			return nil, malformed(UpstreamDistrict, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Today returns the slots dated with now's calendar date.
func (c *DistrictClient) Today(ctx context.Context, districtID string, now time.Time) (prayer.ResolvedDay, error) {
	day, _, err := c.TodayAndTomorrowFajr(ctx, districtID, now)
	return day, err
}

// TomorrowFajr returns the dawn time for the day after now.
func (c *DistrictClient) TomorrowFajr(ctx context.Context, districtID string, now time.Time) (string, error) {
	entries, err := c.Schedule(ctx, districtID)
	if err != nil {
		return "", fmt.Errorf("fetch tomorrow's Fajr: %w", err)
	}
	date := prayer.FormatDate(now.AddDate(0, 0, 1))
	e, ok := findDate(entries, date)
	if !ok {
		return "", fmt.Errorf("fetch tomorrow's Fajr: %w", dateNotFound(UpstreamDistrict, date))
	}
	return e.Times.Fajr, nil
}

// TodayAndTomorrowFajr serves today's slots and tomorrow's dawn from one
// request. A missing tomorrow yields an empty Fajr rather than an error.
func (c *DistrictClient) TodayAndTomorrowFajr(ctx context.Context, districtID string, now time.Time) (prayer.ResolvedDay, string, error) {
	entries, err := c.Schedule(ctx, districtID)
	if err != nil {
		return prayer.ResolvedDay{}, "", fmt.Errorf("fetch today: %w", err)
	}

	date := prayer.FormatDate(now)
	today, ok := findDate(entries, date)
	if !ok {
		return prayer.ResolvedDay{}, "", fmt.Errorf("fetch today: %w", dateNotFound(UpstreamDistrict, date))
	}

	var tomorrowFajr string
	if next, ok := findDate(entries, prayer.FormatDate(now.AddDate(0, 0, 1))); ok {
		tomorrowFajr = next.Times.Fajr
	}

	return prayer.ResolvedDay{Times: today.Times, TimeZone: DistrictTimeZone}, tomorrowFajr, nil
}

// Window returns up to days consecutive entries starting at start's date.
func (c *DistrictClient) Window(ctx context.Context, districtID string, start time.Time, days int) ([]prayer.DailyEntry, error) {
	entries, err := c.Schedule(ctx, districtID)
	if err != nil {
		return nil, fmt.Errorf("fetch window: %w", err)
	}

	window := filterWindow(entries, start, days)
	if len(window) == 0 || window[0].Date != prayer.FormatDate(start) {
		return nil, fmt.Errorf("fetch window: %w", dateNotFound(UpstreamDistrict, prayer.FormatDate(start)))
	}
	return window, nil
}
