package motion

import (
	"regexp"
	"strconv"
)

// IoU calculates Intersection over Union between two rectangles.
func IoU(r1, r2 Rectangle) float64 {
	xA := maxFloat64(r1.X, r2.X)
	yA := maxFloat64(r1.Y, r2.Y)
	xB := minFloat64(r1.X+r1.Width, r2.X+r2.Width)
	yB := minFloat64(r1.Y+r1.Height, r2.Y+r2.Height)

	interArea := maxFloat64(0, xB-xA) * maxFloat64(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}

	r1Area := r1.Width * r1.Height
	r2Area := r2.Width * r2.Height

	return interArea / (r1Area + r2Area - interArea)
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

var trailingDigits = regexp.MustCompile(`^(.*?)(\d+)$`)

// UniqueName returns name, altered until it does not collide with any of existing.
// An empty name becomes "1". A name ending in digits has that number incremented,
// otherwise "2" is appended.
func UniqueName(name string, existing []string) string {
	if name == "" {
		name = "1"
	}
	taken := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		taken[e] = struct{}{}
	}
	for {
		if _, ok := taken[name]; !ok {
			return name
		}
		if m := trailingDigits.FindStringSubmatch(name); m != nil {
			n, err := strconv.Atoi(m[2])
			if err == nil {
				name = m[1] + strconv.Itoa(n+1)
				continue
			}
		}
		name += "2"
	}
}
