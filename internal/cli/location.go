package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/smokyabdulrahman/salahnow/internal/config"
	"github.com/smokyabdulrahman/salahnow/internal/geo"
	"github.com/smokyabdulrahman/salahnow/internal/service"
)

// nearbyKm bounds the search for a known place around configured
// coordinates, used to fill in the country.
const nearbyKm = 50

// resolveLocation determines the effective location.
// Priority: coordinates > city > district id > cached detection > IP detection.
func resolveLocation(ctx context.Context, cfg *config.Config, svc *service.Service) (geo.Location, error) {
	switch {
	case cfg.Latitude != 0 || cfg.Longitude != 0:
		loc := geo.Location{
			City:        cfg.City,
			Country:     cfg.Country,
			CountryCode: strings.ToUpper(cfg.CountryCode),
			Latitude:    cfg.Latitude,
			Longitude:   cfg.Longitude,
			DistrictID:  cfg.DistrictID,
			Custom:      true,
		}
		if near, _, ok := geo.Nearest(loc.Latitude, loc.Longitude, nearbyKm, nil); ok {
			if loc.City == "" {
				loc.City = near.City
			}
			if loc.CountryCode == "" && loc.Country == "" {
				loc.Country, loc.CountryCode = near.Country, near.CountryCode
			}
			loc.TimeZone = near.TimeZone
		}
		if loc.City == "" {
			loc.City = fmt.Sprintf("%.4f,%.4f", loc.Latitude, loc.Longitude)
		}
		return loc, nil

	case cfg.City != "":
		known, ok := geo.Lookup(cfg.City, cfg.CountryCode)
		if !ok {
			known, ok = geo.Lookup(cfg.City, "")
		}
		if !ok {
			return geo.Location{}, fmt.Errorf("unknown city %q: set latitude and longitude, or a district id", cfg.City)
		}
		if cfg.DistrictID != "" {
			known.DistrictID = cfg.DistrictID
		}
		return known, nil

	case cfg.DistrictID != "":
		return geo.Location{
			City:        "District " + cfg.DistrictID,
			Country:     "Türkiye",
			CountryCode: "TR",
			DistrictID:  cfg.DistrictID,
			TimeZone:    "Europe/Istanbul",
		}, nil

	default:
		return svc.Locate(ctx, detectLocation), nil
	}
}
