// Package geo models locations and everything derived from coordinates:
// the embedded gazetteer, nearest-place lookup, IP-based detection and
// coordinate to timezone resolution.
package geo

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Location is a place prayer times can be computed for.
type Location struct {
	City        string  `yaml:"city" json:"city"`
	Country     string  `yaml:"country" json:"country"`
	CountryCode string  `yaml:"country_code" json:"countryCode"`
	Latitude    float64 `yaml:"lat" json:"lat"`
	Longitude   float64 `yaml:"lon" json:"lon"`
	// DistrictID is the district-source identifier, empty when unknown.
	DistrictID string `yaml:"district_id,omitempty" json:"districtId,omitempty"`
	// TimeZone is an IANA zone hint, empty when unknown.
	TimeZone string `yaml:"timezone,omitempty" json:"timeZone,omitempty"`
	Address  string `yaml:"address,omitempty" json:"address,omitempty"`
	// Custom marks a user-entered location rather than a gazetteer entry.
	Custom bool `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// Key identifies the location in cache entries: "{city}-{countryCode}".
func (l Location) Key() string {
	return l.City + "-" + l.CountryCode
}

// Equal compares by (city, countryCode). When either side is custom the
// coordinates must match too.
func (l Location) Equal(o Location) bool {
	if l.City != o.City || l.CountryCode != o.CountryCode {
		return false
	}
	if l.Custom || o.Custom {
		return l.Latitude == o.Latitude && l.Longitude == o.Longitude
	}
	return true
}

// HasCoordinates reports whether the location carries a usable position.
func (l Location) HasCoordinates() bool {
	if l.Latitude == 0 && l.Longitude == 0 {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

func (l Location) String() string {
	if l.Country == "" {
		return l.City
	}
	return l.City + ", " + l.Country
}

// Fold normalizes a name for comparison: diacritics are stripped and case
// is folded, so "Türkiye" and "TURKIYE" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	// Dotless ı has no combining mark to strip.
	out = strings.ReplaceAll(out, "ı", "i")
	return cases.Fold().String(out)
}
