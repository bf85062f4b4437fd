package models

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var ErrUnparsableOdds = errors.New("unparsable odds")

// ParseOdds normalizes odds to decimal form. Fractional "a/b" becomes a/b + 1,
// plain numbers parse directly.
func ParseOdds(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrUnparsableOdds
	}

	if num, den, ok := strings.Cut(s, "/"); ok {
		a, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, ErrUnparsableOdds
		}
		b, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil || b == 0 {
			return 0, ErrUnparsableOdds
		}
		return finite(a/b + 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrUnparsableOdds
	}
	return finite(v)
}

func finite(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrUnparsableOdds
	}
	return v, nil
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
