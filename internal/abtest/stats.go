package abtest

import "math"

// maxConfidence caps the reported confidence so a finite z never reads as
// absolute certainty.
const maxConfidence = 0.999

// erf approximates the Gauss error function (Abramowitz & Stegun 7.1.26),
// accurate to about 1.5e-7.
func erf(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)
	return sign * y
}

// zConfidence runs a two-proportion z-test between control and variant
// conversion counts and returns the confidence that the proportions differ.
// Zero sessions on either side, or zero pooled variance, yields 0: the
// sentinel for "no signal".
func zConfidence(controlConversions, controlSessions, variantConversions, variantSessions int) float64 {
	if controlSessions == 0 || variantSessions == 0 {
		return 0
	}

	p1 := float64(controlConversions) / float64(controlSessions)
	p2 := float64(variantConversions) / float64(variantSessions)

	n1 := float64(controlSessions)
	n2 := float64(variantSessions)
	pooled := (float64(controlConversions) + float64(variantConversions)) / (n1 + n2)

	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		return 0
	}

	z := math.Abs(p2-p1) / se
	confidence := 0.5 * (1 + erf(z/math.Sqrt2))
	if confidence < 0 {
		return 0
	}
	return math.Min(confidence, maxConfidence)
}
