package abtest

import "math"

// z for a 95% two-sided interval.
const wilsonZ = 1.96

// wilsonInterval returns the Wilson score interval for a conversion rate.
// Unlike the normal approximation it stays inside [0, 1] and behaves at
// small sample sizes. Zero sessions yields (0, 0).
func wilsonInterval(conversions, sessions int) (low, high float64) {
	if sessions == 0 {
		return 0, 0
	}

	n := float64(sessions)
	p := float64(conversions) / n
	z2 := wilsonZ * wilsonZ

	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	margin := wilsonZ * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / denom

	low = math.Max(0, center-margin)
	high = math.Min(1, center+margin)
	return low, high
}
