package geo

import (
	_ "embed"
	"fmt"
	"math"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var gazetteerRaw []byte

var (
	gazetteerOnce sync.Once
	gazetteer     []Location
	gazetteerErr  error
)

// Gazetteer returns the embedded list of known places.
func Gazetteer() ([]Location, error) {
	gazetteerOnce.Do(func() {
		gazetteerErr = yaml.Unmarshal(gazetteerRaw, &gazetteer)
		if gazetteerErr != nil {
			gazetteerErr = fmt.Errorf("failed to parse gazetteer: %w", gazetteerErr)
		}
	})
	if gazetteerErr != nil {
		return nil, gazetteerErr
	}
	out := make([]Location, len(gazetteer))
	copy(out, gazetteer)
	return out, nil
}

// DefaultLocation is used when nothing better is known.
func DefaultLocation() Location {
	if places, err := Gazetteer(); err == nil && len(places) > 0 {
		return places[0]
	}
	return Location{
		City: "Istanbul", Country: "Türkiye", CountryCode: "TR",
		Latitude: 41.0082, Longitude: 28.9784, DistrictID: "9541", TimeZone: "Europe/Istanbul",
	}
}

// Lookup finds a gazetteer entry by city name, and by country code when one
// is given. Names are compared with Fold.
func Lookup(city, countryCode string) (Location, bool) {
	places, err := Gazetteer()
	if err != nil {
		return Location{}, false
	}
	want := Fold(city)
	for _, p := range places {
		if Fold(p.City) != want {
			continue
		}
		if countryCode != "" && Fold(p.CountryCode) != Fold(countryCode) {
			continue
		}
		return p, true
	}
	return Location{}, false
}

// Nearest returns the gazetteer entry closest to (lat, lon) that satisfies
// keep, together with its distance in kilometres. maxKm <= 0 disables the
// distance limit.
func Nearest(lat, lon, maxKm float64, keep func(Location) bool) (Location, float64, bool) {
	places, err := Gazetteer()
	if err != nil {
		return Location{}, 0, false
	}

	best, bestKm, found := Location{}, math.Inf(1), false
	for _, p := range places {
		if keep != nil && !keep(p) {
			continue
		}
		km := DistanceKm(lat, lon, p.Latitude, p.Longitude)
		if km < bestKm {
			best, bestKm, found = p, km, true
		}
	}
	if !found || (maxKm > 0 && bestKm > maxKm) {
		return Location{}, 0, false
	}
	return best, bestKm, true
}

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle (haversine) distance between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
