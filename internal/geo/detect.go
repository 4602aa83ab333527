package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DetectTimeout bounds a single location acquisition.
const DetectTimeout = 10 * time.Second

// ipAPIResponse maps the response from ip-api.com.
type ipAPIResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	City        string  `json:"city"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Timezone    string  `json:"timezone"`
}

// geoAPIURL is the geolocation API endpoint. It is a variable (not a constant)
// so that tests can override it with an httptest server URL.
var geoAPIURL = "http://ip-api.com/json/?fields=status,message,lat,lon,city,country,countryCode,timezone"

// DetectLocation uses ip-api.com to determine the user's location from their
// public IP address. This is a free service that requires no API key.
func DetectLocation(ctx context.Context) (Location, error) {
	resp, err := resty.New().
		SetTimeout(DetectTimeout).
		R().
		SetContext(ctx).
		Get(geoAPIURL)
	if err != nil {
		return Location{}, fmt.Errorf("geolocation request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return Location{}, fmt.Errorf("geolocation API returned status %d", resp.StatusCode())
	}

	var result ipAPIResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return Location{}, fmt.Errorf("failed to decode geolocation response: %w", err)
	}

	if result.Status != "success" {
		return Location{}, fmt.Errorf("geolocation failed: %s", result.Message)
	}

	return Location{
		City:        result.City,
		Country:     result.Country,
		CountryCode: result.CountryCode,
		Latitude:    result.Lat,
		Longitude:   result.Lon,
		TimeZone:    result.Timezone,
	}, nil
}

// DetectFunc acquires the observer's location.
type DetectFunc func(ctx context.Context) (Location, error)

// Acquire runs detect bounded by DetectTimeout and merges the result with
// the gazetteer entry of the same city, which supplies a district id when
// one is known. On failure it returns DefaultLocation and the cause.
func Acquire(ctx context.Context, detect DetectFunc) (Location, error) {
	if detect == nil {
		return DefaultLocation(), errors.New("no location detector")
	}

	ctx, cancel := context.WithTimeout(ctx, DetectTimeout)
	defer cancel()

	loc, err := detect(ctx)
	if err != nil {
		return DefaultLocation(), err
	}
	if !loc.HasCoordinates() {
		return DefaultLocation(), errors.New("geolocation returned no coordinates")
	}

	if known, ok := Lookup(loc.City, loc.CountryCode); ok {
		if loc.TimeZone == "" {
			loc.TimeZone = known.TimeZone
		}
		loc.DistrictID = known.DistrictID
		loc.Country = known.Country
	}
	return loc, nil
}
