package geo

import (
	"errors"
	"sync"

	"github.com/ringsaturn/tzf"
)

var (
	ErrTimezoneNotFound = errors.New("timezone not found for coordinates")
	ErrInvalidCoord     = errors.New("invalid coordinates")
)

var (
	finderOnce sync.Once
	finder     tzf.F
	finderErr  error
)

// TimezoneAt returns the IANA zone containing the coordinates. The boundary
// dataset is loaded on first use.
func TimezoneAt(lat, lon float64) (string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", ErrInvalidCoord
	}

	finderOnce.Do(func() {
		finder, finderErr = tzf.NewDefaultFinder()
	})
	if finderErr != nil {
		return "", finderErr
	}

	name := finder.GetTimezoneName(lon, lat)
	if name == "" {
		return "", ErrTimezoneNotFound
	}
	return name, nil
}
