package api

import (
	"fmt"
	"strings"

	"github.com/smokyabdulrahman/salahnow/internal/prayer"
)

// timingsResponse is the Al Adhan /timings payload.
type timingsResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   struct {
		Timings timings `json:"timings"`
		Meta    struct {
			Timezone string `json:"timezone"`
		} `json:"meta"`
	} `json:"data"`
}

// calendarResponse is the Al Adhan /calendar payload: one item per day.
type calendarResponse struct {
	Code   int           `json:"code"`
	Status string        `json:"status"`
	Data   []calendarDay `json:"data"`
}

type calendarDay struct {
	Timings timings `json:"timings"`
	Date    struct {
		Gregorian struct {
			Date string `json:"date"` // "DD-MM-YYYY"
		} `json:"gregorian"`
	} `json:"date"`
}

// timings carries the Al Adhan slots. Values may have a " (TZ)" suffix.
type timings struct {
	Fajr    string `json:"Fajr"`
	Sunrise string `json:"Sunrise"`
	Dhuhr   string `json:"Dhuhr"`
	Asr     string `json:"Asr"`
	Maghrib string `json:"Maghrib"`
	Isha    string `json:"Isha"`
}

func (t timings) times() (prayer.Times, error) {
	return prayer.NormalizeTimes(prayer.Times{
		Fajr:    t.Fajr,
		Sunrise: t.Sunrise,
		Dhuhr:   t.Dhuhr,
		Asr:     t.Asr,
		Maghrib: t.Maghrib,
		Isha:    t.Isha,
	})
}

// entry converts a calendar day, rewriting "DD-MM-YYYY" to "DD.MM.YYYY".
func (d calendarDay) entry() (prayer.DailyEntry, error) {
	parts := strings.Split(d.Date.Gregorian.Date, "-")
	if len(parts) != 3 {
		return prayer.DailyEntry{}, fmt.Errorf("invalid calendar date %q", d.Date.Gregorian.Date)
	}
	times, err := d.Timings.times()
	if err != nil {
		return prayer.DailyEntry{}, err
	}
	return prayer.DailyEntry{
		Date:  parts[0] + "." + parts[1] + "." + parts[2],
		Times: times,
	}, nil
}

// districtDay is one element of the ezanvakti /vakitler array. Field names
// are Turkish: Imsak is dawn, Gunes sunrise, Ogle noon, Ikindi afternoon,
// Aksam sunset and Yatsi nightfall.
type districtDay struct {
	MiladiTarihKisa string `json:"MiladiTarihKisa"` // "DD.MM.YYYY"
	Imsak           string `json:"Imsak"`
	Gunes           string `json:"Gunes"`
	Ogle            string `json:"Ogle"`
	Ikindi          string `json:"Ikindi"`
	Aksam           string `json:"Aksam"`
	Yatsi           string `json:"Yatsi"`
}

func (d districtDay) entry() (prayer.DailyEntry, error) {
	times, err := prayer.NormalizeTimes(prayer.Times{
		Fajr:    d.Imsak,
		Sunrise: d.Gunes,
		Dhuhr:   d.Ogle,
		Asr:     d.Ikindi,
		Maghrib: d.Aksam,
		Isha:    d.Yatsi,
	})
	if err != nil {
		return prayer.DailyEntry{}, fmt.Errorf("%s: %w", d.MiladiTarihKisa, err)
	}
	return prayer.DailyEntry{Date: strings.TrimSpace(d.MiladiTarihKisa), Times: times}, nil
}
