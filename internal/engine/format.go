package engine

import (
	"fmt"
	"strconv"
	"strings"
)

type scale struct {
	limit   uint64 // Counts below limit use this row
	divisor float64
	suffix  string
}

var scales = []scale{
	{1_000_000, 1e3, "k"},
	{1_000_000_000, 1e6, "m"},
	{1_000_000_000_000, 1e9, "b"},
	{1_000_000_000_000_000, 1e12, "t"},
}

// FormatCount renders n for the counter labels: exact below 1000, then
// k/m/b/t with one decimal, then scientific notation.
func FormatCount(n uint64) string {
	if n < 1000 {
		return strconv.FormatUint(n, 10)
	}

	for _, s := range scales {
		if n < s.limit {
			text := strconv.FormatFloat(float64(n)/s.divisor, 'f', 1, 64)
			return strings.TrimSuffix(text, ".0") + s.suffix
		}
	}

	mantissa := float64(n)
	exponent := 0
	for mantissa >= 10 {
		mantissa /= 10
		exponent++
	}
	text := strings.TrimSuffix(strconv.FormatFloat(mantissa, 'f', 1, 64), ".0")
	return fmt.Sprintf("%se%d", text, exponent)
}
