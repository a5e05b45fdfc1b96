package scoring

import "time"

// Coefficients holds every tunable in the ranking formula. Nothing in this
// package hard-codes a weight: steepness, mix, and decay horizons all come
// from configuration so workspaces can be calibrated without a rebuild.
type Coefficients struct {
	// Top-level mix: total = Alpha*semantic + Beta*learned + Gamma*concept + Delta*recency.
	Alpha float64
	Beta  float64
	Gamma float64
	Delta float64

	// Learned-weight sub-coefficients.
	A1 float64 // explicit votes
	A2 float64 // dwell-time z-score
	A3 float64 // inverse click rank
	A4 float64 // same-workspace transfer discount, < 1
	A5 float64 // stale-evidence penalty
	A6 float64 // cross-workspace transfer discount, < A4

	// HalfLife discounts interaction evidence; RecencyHalfLife ages item
	// freshness independently of feedback.
	HalfLife        time.Duration
	RecencyHalfLife time.Duration

	// Query-transfer bounds.
	SimilarityThreshold float64
	TransferLimit       int

	// Minimum workspace-wide dwell samples before the z-score term is
	// trusted; below this the term contributes 0.
	MinDwellSamples int
}

// Defaults returns the stock calibration.
func Defaults() Coefficients {
	return Coefficients{
		Alpha: 0.6,
		Beta:  0.3,
		Gamma: 0.1,
		Delta: 0.0,

		A1: 1.0,
		A2: 0.8,
		A3: 0.6,
		A4: 0.4,
		A5: 0.5,
		A6: 0.2,

		HalfLife:        14 * 24 * time.Hour,
		RecencyHalfLife: 14 * 24 * time.Hour,

		SimilarityThreshold: 0.35,
		TransferLimit:       10,
		MinDwellSamples:     5,
	}
}

// Baseline returns a copy with learning, concept, and recency contributions
// disabled: semantic-only ranking for A/B comparison.
func (c Coefficients) Baseline() Coefficients {
	c.Beta = 0
	c.Gamma = 0
	c.Delta = 0
	return c
}
