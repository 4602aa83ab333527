// Package api talks to the two upstream prayer time sources and maps their
// payloads onto the canonical prayer types.
package api

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/smokyabdulrahman/salahnow/internal/prayer"
)

const defaultTimeout = 10 * time.Second

var utf8BOM = []byte("\xef\xbb\xbf")

func newHTTPClient() *resty.Client {
	return resty.New().
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json")
}

// get performs one GET and classifies failures. The body is returned with
// any leading UTF-8 BOM removed.
func get(ctx context.Context, hc *resty.Client, upstream, url string, params map[string]string) ([]byte, error) {
	req := hc.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s request: %w", upstream, ctx.Err())
		}
		return nil, &Error{Upstream: upstream, Kind: ErrUpstreamUnreachable, Err: err}
	}

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, &Error{
			Upstream: upstream,
			Status:   code,
			Kind:     ErrUpstreamUnreachable,
			Err:      fmt.Errorf("API returned status %d: %s", code, snippet(resp.Body())),
		}
	}

	return bytes.TrimPrefix(resp.Body(), utf8BOM), nil
}

func snippet(body []byte) string {
	const max = 200
	body = bytes.TrimSpace(body)
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

// dayOf returns t's calendar date at midnight UTC.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// findDate returns the entry whose date string equals date exactly.
func findDate(entries []prayer.DailyEntry, date string) (prayer.DailyEntry, bool) {
	for _, e := range entries {
		if e.Date == date {
			return e, true
		}
	}
	return prayer.DailyEntry{}, false
}

// filterWindow keeps the entries dated within [start, start+days), in
// chronological order with duplicates dropped.
func filterWindow(entries []prayer.DailyEntry, start time.Time, days int) []prayer.DailyEntry {
	first := dayOf(start)
	out := make([]prayer.DailyEntry, 0, days)
	for i := 0; i < days; i++ {
		if e, ok := findDate(entries, prayer.FormatDate(first.AddDate(0, 0, i))); ok {
			out = append(out, e)
		}
	}
	return out
}
