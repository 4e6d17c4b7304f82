package planner

import (
	"math"
	"strconv"
	"strings"
)

var amountSuffixes = []struct {
	suffix     string
	multiplier float64
}{
	{"thousand", 1e3},
	{"trillion", 1e12},
	{"billion", 1e9},
	{"million", 1e6},
	{"mm", 1e6},
	{"bn", 1e9},
	{"k", 1e3},
	{"m", 1e6},
	{"b", 1e9},
	{"t", 1e12},
}

// ParseAmount parses "$2.5B", "500 million" or "USD 1,200,000" into a raw
// number. Unparseable input yields 0.
func ParseAmount(s string) float64 {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range []string{"usd", "eur", "gbp", "$", "€", "£"} {
		v = strings.TrimPrefix(v, prefix)
	}
	v = strings.TrimSuffix(strings.TrimSpace(v), " dollars")
	v = strings.ReplaceAll(v, ",", "")
	v = strings.TrimSpace(v)

	multiplier := 1.0
	for _, sfx := range amountSuffixes {
		if strings.HasSuffix(v, sfx.suffix) {
			v = strings.TrimSpace(strings.TrimSuffix(v, sfx.suffix))
			multiplier = sfx.multiplier
			break
		}
	}

	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0
	}
	return n * multiplier
}
