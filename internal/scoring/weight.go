package scoring

import (
	"math"

	"github.com/kalambet/rankd/internal/store"
)

// sigmoidClamp bounds the sigmoid input so extreme interaction histories
// saturate instead of producing degenerate floats.
const sigmoidClamp = 10

// Sigmoid maps the raw evidence sum into (0, 1). Input is clamped to
// [-sigmoidClamp, sigmoidClamp] first.
func Sigmoid(x float64) float64 {
	if x > sigmoidClamp {
		x = sigmoidClamp
	} else if x < -sigmoidClamp {
		x = -sigmoidClamp
	}
	return 1 / (1 + math.Exp(-x))
}

// Neutral is the cold-start learned weight: sigmoid(0), the midpoint an item
// holds before any interaction evidence exists.
func Neutral() float64 {
	return Sigmoid(0)
}

// LearnedWeight folds an item's interaction history into a single weight in
// (0, 1). Each interaction is discounted by its age before entering the sum,
// so the same history read at two different times yields two different
// weights, and a history left untouched drifts back toward Neutral.
//
// Raw evidence:
//
//	x = A1*votes + A2*dwellZ + A3*rankTerm - A5*penalty
//
// where votes is the decay-weighted sum of explicit useful signals, dwellZ
// the decay-weighted mean dwell z-score (only once the workspace has
// MinDwellSamples observed dwells), rankTerm the decayed reciprocal of the
// mean click rank, and penalty sums d*(1-d) per interaction — zero for fresh
// evidence, zero again once it has fully faded, peaking in between so that
// half-stale history is trusted least.
func LearnedWeight(ixs []store.Interaction, dwell store.DwellDistribution, nowMS int64, c Coefficients) float64 {
	if len(ixs) == 0 {
		return Neutral()
	}

	var votes, penalty float64
	var dwellSum float64
	dwellN := 0
	var rankNum, rankDen float64
	rankN := 0

	useDwell := dwell.Count >= c.MinDwellSamples && dwell.StdDev > 0

	for _, ix := range ixs {
		d := Decay(nowMS, ix.TS, c.HalfLife)

		votes += d * float64(ix.Useful)
		penalty += d * (1 - d)

		if useDwell && ix.DwellMS > 0 {
			z := (float64(ix.DwellMS) - dwell.Mean) / dwell.StdDev
			dwellSum += d * z
			dwellN++
		}

		if ix.ClickRank > 0 {
			rankNum += d * float64(ix.ClickRank)
			rankDen += d
			rankN++
		}
	}

	var dwellZ float64
	if dwellN > 0 {
		dwellZ = dwellSum / float64(dwellN)
	}

	var rankTerm float64
	if rankDen > 0 {
		meanRank := rankNum / rankDen
		avgDecay := rankDen / float64(rankN)
		rankTerm = avgDecay / math.Max(1, meanRank)
	}

	x := c.A1*votes + c.A2*dwellZ + c.A3*rankTerm - c.A5*penalty
	return Sigmoid(x)
}

// LearnedTerm combines direct evidence with transferred evidence from
// similar queries. Transferred weights contribute only their deviation from
// Neutral, discounted by A4 (same workspace) or A6 (cross workspace), so an
// item that similar queries found useful gets a strictly smaller lift than
// one the current query itself has evidence for, and absent transfer
// evidence contributes nothing at all.
func LearnedTerm(direct, transfer, cross float64, c Coefficients) float64 {
	return direct + c.A4*(transfer-Neutral()) + c.A6*(cross-Neutral())
}
