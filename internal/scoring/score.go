package scoring

import "strings"

// scoreEpsilon is the window inside which two totals count as tied.
const scoreEpsilon = 1e-9

// Breakdown is the additive decomposition of one candidate's score. The four
// components are stored post-multiplication, so Total is always their exact
// sum and a caller can reconstruct it from the parts.
type Breakdown struct {
	Semantic float64 `json:"semantic"`
	Learned  float64 `json:"learned"`
	Concept  float64 `json:"concept"`
	Recency  float64 `json:"recency"`
	Total    float64 `json:"total"`
}

// Compose applies the top-level mix to the four raw signals.
func Compose(semantic, learned, concept, recency float64, c Coefficients) Breakdown {
	b := Breakdown{
		Semantic: c.Alpha * semantic,
		Learned:  c.Beta * learned,
		Concept:  c.Gamma * concept,
		Recency:  c.Delta * recency,
	}
	b.Total = b.Semantic + b.Learned + b.Concept + b.Recency
	return b
}

// Recency ages an item by its creation time: 1 for a just-created item,
// halving every RecencyHalfLife. Independent of interaction history.
func Recency(nowMS, createdMS int64, c Coefficients) float64 {
	return Decay(nowMS, createdMS, c.RecencyHalfLife)
}

// ConceptSimilarity compares an item's concept tag against the query text.
// An exact case-insensitive tag match scores 1; otherwise the Jaccard
// overlap between the tag's tokens and the query's tokens. Empty on either
// side scores 0.
func ConceptSimilarity(concept, queryText string) float64 {
	concept = strings.TrimSpace(strings.ToLower(concept))
	queryText = strings.TrimSpace(strings.ToLower(queryText))
	if concept == "" || queryText == "" {
		return 0
	}
	if concept == queryText {
		return 1
	}

	ct := tokenSet(concept)
	qt := tokenSet(queryText)
	if len(ct) == 0 || len(qt) == 0 {
		return 0
	}

	inter := 0
	for tok := range ct {
		if _, ok := qt[tok]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	return float64(inter) / float64(len(ct)+len(qt)-inter)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		set[tok] = struct{}{}
	}
	return set
}

// Before reports whether candidate a sorts ahead of candidate b: higher
// total first, with totals within scoreEpsilon broken by ascending item id
// so a ranking is stable across runs.
func Before(aTotal, bTotal float64, aID, bID string) bool {
	diff := aTotal - bTotal
	if diff > scoreEpsilon {
		return true
	}
	if diff < -scoreEpsilon {
		return false
	}
	return aID < bID
}
