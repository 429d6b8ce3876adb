package analysis

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/integrate"

	"github.com/san-kum/magsim/internal/storage"
)

var ErrTooFewPoints = errors.New("analysis: too few points")

// Branch summarises one sweep direction.
type Branch struct {
	Polarity int64
	Points   int
	// Coercivity is the applied field (T) where m first changes sign, NaN
	// if it never does.
	Coercivity float64
	// Remanence is m interpolated at zero applied field, NaN if the branch
	// never crosses zero field.
	Remanence float64
	MMin      float64
	MMax      float64
}

// LoopSummary describes a full hysteresis loop.
type LoopSummary struct {
	Negative Branch
	Positive Branch
	// Area is the field-magnetisation area between the branches over the
	// field range they share, in Tesla.
	Area float64
}

// Loop analyses the rows of a hysteresis run. Both branches need at least
// two points.
func Loop(rows []storage.Row) (LoopSummary, error) {
	var neg, pos []storage.Row
	for _, r := range rows {
		switch {
		case r.Polarity < 0:
			neg = append(neg, r)
		case r.Polarity > 0:
			pos = append(pos, r)
		}
	}
	if len(neg) < 2 || len(pos) < 2 {
		return LoopSummary{}, ErrTooFewPoints
	}

	s := LoopSummary{
		Negative: branch(-1, neg),
		Positive: branch(1, pos),
	}
	s.Area = math.Abs(integral(neg) - integral(pos))
	return s, nil
}

func branch(polarity int64, rows []storage.Row) Branch {
	b := Branch{
		Polarity:   polarity,
		Points:     len(rows),
		Coercivity: math.NaN(),
		Remanence:  math.NaN(),
		MMin:       math.Inf(1),
		MMax:       math.Inf(-1),
	}
	for i, r := range rows {
		b.MMin = min(b.MMin, r.M)
		b.MMax = max(b.MMax, r.M)
		if i == 0 {
			continue
		}
		prev := rows[i-1]
		if math.IsNaN(b.Coercivity) && crosses(prev.M, r.M) {
			b.Coercivity = lerp(prev.M, r.M, prev.HApplied, r.HApplied, 0)
		}
		if math.IsNaN(b.Remanence) && crosses(prev.HApplied, r.HApplied) {
			b.Remanence = lerp(prev.HApplied, r.HApplied, prev.M, r.M, 0)
		}
	}
	return b
}

// crosses reports whether [a, b] contains zero with b on the far side.
func crosses(a, b float64) bool {
	return (a <= 0 && b > 0) || (a >= 0 && b < 0)
}

// lerp returns the y at which the line through (x0,y0) and (x1,y1) has x.
func lerp(x0, x1, y0, y1, x float64) float64 {
	if x1 == x0 {
		return y0
	}
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

// integral is the integral of m over H for one branch, taken with H
// increasing.
func integral(rows []storage.Row) float64 {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b storage.Row) int {
		switch {
		case a.HApplied < b.HApplied:
			return -1
		case a.HApplied > b.HApplied:
			return 1
		}
		return 0
	})
	h := make([]float64, 0, len(sorted))
	m := make([]float64, 0, len(sorted))
	for _, r := range sorted {
		if n := len(h); n > 0 && h[n-1] == r.HApplied {
			continue
		}
		h = append(h, r.HApplied)
		m = append(m, r.M)
	}
	if len(h) < 2 {
		return 0
	}
	return integrate.Trapezoidal(h, m)
}
