// Package source decides which upstream is authoritative for a location.
package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smokyabdulrahman/salahnow/internal/geo"
)

// Source identifies an upstream prayer time provider.
type Source string

const (
	// District is the official Diyanet schedule, keyed by district id.
	District Source = "diyanet"
	// Coordinate is the Al Adhan computation (Muslim World League).
	Coordinate Source = "mwl"
)

// All lists every accepted source.
var All = []Source{District, Coordinate}

// Default is used when no preference is stored.
const Default = District

// Parse validates a stored or user-supplied source name.
func Parse(s string) (Source, error) {
	for _, src := range All {
		if strings.EqualFold(strings.TrimSpace(s), string(src)) {
			return src, nil
		}
	}
	return "", fmt.Errorf("invalid source %q (valid: %s, %s)", s, District, Coordinate)
}

// ParseOrDefault is Parse with unknown or empty input mapped to Default.
func ParseOrDefault(s string) Source {
	if src, err := Parse(s); err == nil {
		return src
	}
	return Default
}

// Description is a short human label.
func (s Source) Description() string {
	switch s {
	case District:
		return "Diyanet (official Turkish schedule, district based)"
	case Coordinate:
		return "Muslim World League (computed from coordinates)"
	}
	return string(s)
}

// ErrSourceResolutionFailed means the chosen source cannot serve the
// location: no district id for the district source, or no coordinates for
// the coordinate source.
var ErrSourceResolutionFailed = errors.New("source resolution failed")

// MaxDistrictDistanceKm bounds the nearest-district search.
const MaxDistrictDistanceKm = 300

// homeNames are the folded country names that count as home territory.
var homeNames = map[string]bool{}

func init() {
	for _, n := range []string{"Turkey", "Türkiye", "Turkiye", "Türkei", "Turquie", "Turchia"} {
		homeNames[geo.Fold(n)] = true
	}
}

// IsHomeTerritory reports whether the district source covers loc.
// A two-letter country code decides on its own; any other code is checked
// as alpha-3 and then the country name is consulted.
func IsHomeTerritory(loc geo.Location) bool {
	code := strings.TrimSpace(loc.CountryCode)
	switch {
	case len(code) == 2:
		return strings.EqualFold(code, "TR")
	case strings.EqualFold(code, "TUR"):
		return true
	}
	return homeNames[geo.Fold(loc.Country)]
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Source Source
	// DistrictID is set when Source is District.
	DistrictID string
	// Forced is true when the requested source was overridden.
	Forced bool
}

// Resolve picks the source for loc. Outside home territory the coordinate
// source is always used. Inside it the request is honoured; a district
// request without an id is resolved to the nearest gazetteer district.
func Resolve(loc geo.Location, requested Source) (Resolution, error) {
	if !IsHomeTerritory(loc) {
		return coordinate(loc, requested != Coordinate)
	}

	if requested == Coordinate {
		return coordinate(loc, false)
	}

	if id := strings.TrimSpace(loc.DistrictID); id != "" {
		return Resolution{Source: District, DistrictID: id}, nil
	}

	if !loc.HasCoordinates() {
		return Resolution{}, fmt.Errorf("%w: %s has no district id and no coordinates", ErrSourceResolutionFailed, loc)
	}
	nearest, _, ok := geo.Nearest(loc.Latitude, loc.Longitude, MaxDistrictDistanceKm, func(l geo.Location) bool {
		return l.DistrictID != "" && IsHomeTerritory(l)
	})
	if !ok {
		return Resolution{}, fmt.Errorf("%w: no district within %d km of %s", ErrSourceResolutionFailed, MaxDistrictDistanceKm, loc)
	}
	return Resolution{Source: District, DistrictID: nearest.DistrictID}, nil
}

func coordinate(loc geo.Location, forced bool) (Resolution, error) {
	if !loc.HasCoordinates() {
		return Resolution{}, fmt.Errorf("%w: %s has no coordinates", ErrSourceResolutionFailed, loc)
	}
	return Resolution{Source: Coordinate, Forced: forced}, nil
}
