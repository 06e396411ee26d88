package timebase

import (
	"fmt"
	"math"
)

// Resolution is the number of base units per second. It fixes how Time
// values map to seconds for a whole federation run; every participant of a
// run must use the same resolution or timed coordination is meaningless.
type Resolution int64

const (
	Seconds      Resolution = 1
	Milliseconds Resolution = 1_000
	Microseconds Resolution = 1_000_000
	Nanoseconds  Resolution = 1_000_000_000
	Picoseconds  Resolution = 1_000_000_000_000
	Femtoseconds Resolution = 1_000_000_000_000_000
)

// DefaultResolution is used when a configuration does not name one.
const DefaultResolution = Microseconds

// ParseResolution maps a configuration string to a Resolution. Both unit
// symbols ("us") and full names ("microseconds") are accepted.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "s", "seconds":
		return Seconds, nil
	case "ms", "milliseconds":
		return Milliseconds, nil
	case "us", "µs", "microseconds":
		return Microseconds, nil
	case "ns", "nanoseconds":
		return Nanoseconds, nil
	case "ps", "picoseconds":
		return Picoseconds, nil
	case "fs", "femtoseconds":
		return Femtoseconds, nil
	}
	return 0, fmt.Errorf("unknown time resolution %q", s)
}

// String returns the unit symbol for the resolution.
func (r Resolution) String() string {
	switch r {
	case Seconds:
		return "s"
	case Milliseconds:
		return "ms"
	case Microseconds:
		return "us"
	case Nanoseconds:
		return "ns"
	case Picoseconds:
		return "ps"
	case Femtoseconds:
		return "fs"
	}
	return fmt.Sprintf("Resolution(%d)", int64(r))
}

// fractionDigits is the decimal width of the sub-second part.
func (r Resolution) fractionDigits() int {
	digits := 0
	for m := int64(r); m > 1; m /= 10 {
		digits++
	}
	return digits
}

// FromSeconds converts floating-point seconds to base units, rounding the
// fractional part. Values outside the representable range clamp to the
// extremes; the negative clamp stops one unit short of Unscheduled so a
// finite configuration value can never alias the sentinel.
func (r Resolution) FromSeconds(sec float64) Time {
	whole, frac := math.Modf(sec)
	limit := float64(math.MaxInt64 / int64(r))
	if whole >= limit {
		return Time(math.MaxInt64)
	}
	if whole <= -limit {
		return Unscheduled + 1
	}
	return Time(int64(whole)*int64(r) + int64(math.Round(frac*float64(r))))
}

// ToSeconds converts base units back to floating-point seconds. Precision
// loss is inherent for large values at fine resolutions; callers that need
// exactness compare Time values directly.
func (r Resolution) ToSeconds(t Time) float64 {
	return float64(t) / float64(r)
}

// Format renders t as decimal seconds with the resolution's full
// sub-second width, e.g. 1500000 at Microseconds is "1.500000". The
// sentinel renders as "unscheduled".
func (r Resolution) Format(t Time) string {
	if t == Unscheduled {
		return "unscheduled"
	}
	if r == Seconds {
		return fmt.Sprintf("%d", int64(t))
	}
	n := int64(t)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	mult := int64(r)
	return fmt.Sprintf("%s%d.%0*d", sign, n/mult, r.fractionDigits(), n%mult)
}
