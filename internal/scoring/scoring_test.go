package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/kalambet/rankd/internal/store"
)

const dayMS = int64(24 * time.Hour / time.Millisecond)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDecay(t *testing.T) {
	half := 14 * 24 * time.Hour
	now := int64(1_700_000_000_000)

	if got := Decay(now, now, half); got != 1 {
		t.Errorf("decay at event time = %v, want 1", got)
	}
	if got := Decay(now, now+dayMS, half); got != 1 {
		t.Errorf("decay for future event = %v, want 1", got)
	}
	if got := Decay(now, now-14*dayMS, half); !almostEqual(got, 0.5) {
		t.Errorf("decay after one half-life = %v, want 0.5", got)
	}
	if got := Decay(now, now-28*dayMS, half); !almostEqual(got, 0.25) {
		t.Errorf("decay after two half-lives = %v, want 0.25", got)
	}
	if got := Decay(now, now-365*dayMS, 0); got != 1 {
		t.Errorf("decay with zero half-life = %v, want 1", got)
	}

	prev := 1.0
	for days := int64(1); days <= 120; days += 7 {
		d := Decay(now, now-days*dayMS, half)
		if d <= 0 || d >= prev {
			t.Fatalf("decay at %d days = %v, want in (0, %v)", days, d, prev)
		}
		prev = d
	}
}

func TestSigmoid(t *testing.T) {
	if got := Sigmoid(0); got != 0.5 {
		t.Errorf("Sigmoid(0) = %v, want 0.5", got)
	}
	if got := Neutral(); got != 0.5 {
		t.Errorf("Neutral() = %v, want 0.5", got)
	}
	// Clamping: anything beyond the bound saturates to the same value.
	if Sigmoid(11) != Sigmoid(1000) {
		t.Error("Sigmoid should clamp large positive inputs")
	}
	if Sigmoid(-11) != Sigmoid(-1000) {
		t.Error("Sigmoid should clamp large negative inputs")
	}
	if !almostEqual(Sigmoid(3)+Sigmoid(-3), 1) {
		t.Error("Sigmoid should be symmetric around 0.5")
	}
	if Sigmoid(-1) >= 0.5 || Sigmoid(1) <= 0.5 {
		t.Error("Sigmoid should be monotonic around 0")
	}
}

func TestLearnedWeightColdStart(t *testing.T) {
	if got := LearnedWeight(nil, store.DwellDistribution{}, 0, Defaults()); got != 0.5 {
		t.Errorf("weight with no history = %v, want 0.5", got)
	}
}

func TestLearnedWeightVotes(t *testing.T) {
	c := Defaults()
	now := int64(1_700_000_000_000)

	up := []store.Interaction{{Useful: 1, TS: now}}
	down := []store.Interaction{{Useful: -1, TS: now}}

	if w := LearnedWeight(up, store.DwellDistribution{}, now, c); w <= 0.5 {
		t.Errorf("weight after upvote = %v, want > 0.5", w)
	}
	if w := LearnedWeight(down, store.DwellDistribution{}, now, c); w >= 0.5 {
		t.Errorf("weight after downvote = %v, want < 0.5", w)
	}

	one := LearnedWeight(up, store.DwellDistribution{}, now, c)
	three := LearnedWeight([]store.Interaction{
		{Useful: 1, TS: now}, {Useful: 1, TS: now}, {Useful: 1, TS: now},
	}, store.DwellDistribution{}, now, c)
	if three <= one {
		t.Errorf("more upvotes should raise the weight: 1 vote %v, 3 votes %v", one, three)
	}
}

func TestLearnedWeightDecaysTowardNeutral(t *testing.T) {
	c := Defaults()
	eventTS := int64(1_700_000_000_000)
	ixs := []store.Interaction{
		{Useful: 1, TS: eventTS},
		{Useful: 1, TS: eventTS},
	}

	prev := math.Inf(1)
	for days := int64(0); days <= 180; days += 10 {
		now := eventTS + days*dayMS
		w := LearnedWeight(ixs, store.DwellDistribution{}, now, c)
		if w <= 0.5 {
			t.Fatalf("at +%dd weight = %v, positive history should stay above neutral", days, w)
		}
		if w >= prev {
			t.Fatalf("at +%dd weight = %v, want strictly below %v", days, w, prev)
		}
		prev = w
	}

	// Far in the future the weight is indistinguishable from cold start.
	far := LearnedWeight(ixs, store.DwellDistribution{}, eventTS+10_000*dayMS, c)
	if math.Abs(far-0.5) > 1e-6 {
		t.Errorf("fully decayed weight = %v, want ~0.5", far)
	}
}

func TestLearnedWeightDwellNeedsSamples(t *testing.T) {
	c := Defaults()
	now := int64(1_700_000_000_000)
	// Aged a day so the stale-evidence penalty is nonzero.
	ixs := []store.Interaction{{Useful: 0, DwellMS: 90_000, TS: now - dayMS}}

	sparse := store.DwellDistribution{Count: c.MinDwellSamples - 1, Mean: 10_000, StdDev: 5_000}
	if w := LearnedWeight(ixs, sparse, now, c); w >= 0.5 {
		t.Errorf("weight with sparse dwell distribution = %v, want penalty-only (< 0.5)", w)
	}

	dense := store.DwellDistribution{Count: c.MinDwellSamples, Mean: 10_000, StdDev: 5_000}
	w := LearnedWeight(ixs, dense, now, c)
	if w <= 0.5 {
		t.Errorf("weight with long dwell and dense distribution = %v, want > 0.5", w)
	}

	short := []store.Interaction{{Useful: 0, DwellMS: 1_000, TS: now}}
	if ws := LearnedWeight(short, dense, now, c); ws >= 0.5 {
		t.Errorf("weight with below-mean dwell = %v, want < 0.5", ws)
	}
}

func TestLearnedWeightClickRank(t *testing.T) {
	c := Defaults()
	now := int64(1_700_000_000_000)

	top := LearnedWeight([]store.Interaction{{ClickRank: 1, TS: now}}, store.DwellDistribution{}, now, c)
	deep := LearnedWeight([]store.Interaction{{ClickRank: 9, TS: now}}, store.DwellDistribution{}, now, c)
	if top <= deep {
		t.Errorf("rank-1 click weight %v should exceed rank-9 click weight %v", top, deep)
	}
	if top <= 0.5 {
		t.Errorf("rank-1 click weight = %v, want > 0.5", top)
	}
}

func TestLearnedTermTransferDiscount(t *testing.T) {
	c := Defaults()

	direct := 0.9
	neutral := Neutral()

	// No transfer evidence contributes nothing.
	if got := LearnedTerm(direct, neutral, neutral, c); !almostEqual(got, direct) {
		t.Errorf("term without transfer = %v, want %v", got, direct)
	}

	// A transferred weight contributes exactly A4 times its own lift.
	withTransfer := LearnedTerm(neutral, direct, neutral, c)
	wantGain := c.A4 * (direct - neutral)
	if !almostEqual(withTransfer-neutral, wantGain) {
		t.Errorf("transfer gain = %v, want %v", withTransfer-neutral, wantGain)
	}

	// Cross-workspace transfer is discounted harder than same-workspace.
	withCross := LearnedTerm(neutral, neutral, direct, c)
	if withCross-neutral >= withTransfer-neutral {
		t.Errorf("cross-workspace gain %v should be below same-workspace gain %v",
			withCross-neutral, withTransfer-neutral)
	}
}

func TestComposeBreakdownSums(t *testing.T) {
	c := Defaults()
	b := Compose(0.8, 0.7, 0.3, 0.9, c)

	if sum := b.Semantic + b.Learned + b.Concept + b.Recency; b.Total != sum {
		t.Errorf("total %v != component sum %v", b.Total, sum)
	}
	if !almostEqual(b.Semantic, c.Alpha*0.8) {
		t.Errorf("semantic component = %v, want %v", b.Semantic, c.Alpha*0.8)
	}
}

func TestBaselineDisablesLearning(t *testing.T) {
	c := Defaults().Baseline()
	if c.Beta != 0 || c.Gamma != 0 || c.Delta != 0 {
		t.Fatalf("baseline should zero beta/gamma/delta, got %+v", c)
	}
	if c.Alpha != Defaults().Alpha {
		t.Errorf("baseline should keep alpha, got %v", c.Alpha)
	}

	b := Compose(0.8, 0.99, 1, 1, c)
	if !almostEqual(b.Total, c.Alpha*0.8) {
		t.Errorf("baseline total = %v, want semantic-only %v", b.Total, c.Alpha*0.8)
	}
}

func TestConceptSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		concept string
		query   string
		want    float64
	}{
		{"exact", "jwt validation", "JWT Validation", 1},
		{"empty concept", "", "jwt validation", 0},
		{"empty query", "auth", "", 0},
		{"disjoint", "database migrations", "jwt validation", 0},
		{"partial overlap", "jwt auth", "jwt validation", 1.0 / 3.0},
		{"subset", "jwt", "jwt validation middleware", 1.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConceptSimilarity(tt.concept, tt.query); !almostEqual(got, tt.want) {
				t.Errorf("ConceptSimilarity(%q, %q) = %v, want %v", tt.concept, tt.query, got, tt.want)
			}
		})
	}
}

func TestBefore(t *testing.T) {
	if !Before(0.9, 0.5, "b", "a") {
		t.Error("higher total should sort first regardless of id")
	}
	if Before(0.5, 0.9, "a", "b") {
		t.Error("lower total should not sort first")
	}
	// Within epsilon, ascending item id wins.
	if !Before(0.5, 0.5+1e-12, "a", "b") {
		t.Error("tied totals should break by ascending id")
	}
	if Before(0.5+1e-12, 0.5, "b", "a") {
		t.Error("tied totals should break by ascending id")
	}
}
