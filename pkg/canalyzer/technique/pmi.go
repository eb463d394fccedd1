package technique

import "math"

// PMICalculator computes pointwise mutual information from corpus counts.
type PMICalculator struct {
	epsilon float64 // smoothing constant
}

// NewPMICalculator creates a calculator; non-positive epsilon defaults to 1.
func NewPMICalculator(epsilon float64) *PMICalculator {
	if epsilon <= 0 {
		epsilon = 1.0
	}
	return &PMICalculator{epsilon: epsilon}
}

// PMI calculates the pointwise mutual information between two tokens
//
// PMI(a,b) = log((N_ab + ε) * N / ((N_a + ε)(N_b + ε)))
//
// Where:
//   - N_ab = number of documents containing both a and b
//   - N_a, N_b = number of documents containing each token
//   - N = total number of documents
//   - ε = smoothing constant
func (c *PMICalculator) PMI(nAB, nA, nB, N int64) float64 {
	if N == 0 {
		return 0
	}

	numerator := (float64(nAB) + c.epsilon) * float64(N)
	denominator := (float64(nA) + c.epsilon) * (float64(nB) + c.epsilon)

	return math.Log(numerator / denominator)
}

// NPMI calculates normalized PMI (range: -1 to 1)
// NPMI(a,b) = PMI(a,b) / -log(P(a,b))
func (c *PMICalculator) NPMI(nAB, nA, nB, N int64) float64 {
	if N == 0 || nAB == 0 {
		return 0
	}

	pAB := (float64(nAB) + c.epsilon) / float64(N)
	logPAB := math.Log(pAB)
	if logPAB == 0 {
		return 0
	}

	return c.PMI(nAB, nA, nB, N) / -logPAB
}
