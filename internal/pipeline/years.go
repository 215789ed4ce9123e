package pipeline

import (
	"time"

	"github.com/pkg/errors"
)

// YearRange returns every year from start through now minus lag, inclusive.
// CBP releases trail the calendar by about two years.
func YearRange(start, lag int, now time.Time) ([]int, error) {
	latest := now.Year() - lag
	var years []int
	for y := start; y <= latest; y++ {
		years = append(years, y)
	}
	if len(years) < 2 {
		return nil, errors.Wrapf(ErrInsufficientYears, "range %d-%d", start, latest)
	}
	return years, nil
}

// NAICSVariable returns the industry-code variable the CBP API expects for a
// given year. The classification was revised in 2007, 2012 and 2017.
func NAICSVariable(year int) string {
	switch {
	case year >= 2017:
		return "NAICS2017"
	case year >= 2012:
		return "NAICS2012"
	case year >= 2007:
		return "NAICS2007"
	default:
		return "NAICS2002"
	}
}
