package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kalambet/rankd/internal/scoring"
	"github.com/kalambet/rankd/internal/store"
)

const defaultK = 10

// Candidate is one externally retrieved result entering the re-ranking
// stage: an item reference plus its raw semantic similarity in [0, 1].
// Either ItemID or Path identifies the item; ItemID wins when both are set.
type Candidate struct {
	ItemID   string  `json:"item_id,omitempty"`
	Path     string  `json:"path,omitempty"`
	Semantic float64 `json:"semantic"`
}

// SearchRequest carries one ranking call.
type SearchRequest struct {
	Workspace  string
	Query      string
	Embedding  []float32 // optional; enables query transfer
	Candidates []Candidate
	K          int    // result cap; defaults to 10
	Concept    string // optional; restrict results to items whose concept overlaps
	Explain    bool   // attach per-component breakdowns
	Baseline   bool   // semantic-only scoring, for A/B comparison
}

// Result is one ranked item. Breakdown is set only in explain mode.
type Result struct {
	Item      store.Item         `json:"item"`
	Score     float64            `json:"score"`
	Breakdown *scoring.Breakdown `json:"breakdown,omitempty"`
}

// Skipped records a candidate dropped before scoring, with the reason.
type Skipped struct {
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// SearchResponse is the ranked result set. QueryID identifies the query
// event this search recorded; feedback should reference it.
type SearchResponse struct {
	QueryID string    `json:"query_id"`
	Results []Result  `json:"results"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// Search records the query event, re-scores the candidates with learned,
// concept, and recency signals, and returns the top K. Malformed candidates
// are skipped with a reason rather than failing the whole call. Rankings
// are deterministic for a fixed store state and clock: near-equal totals
// break by ascending item id.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if strings.TrimSpace(req.Workspace) == "" {
		return SearchResponse{}, fmt.Errorf("%w: empty workspace", store.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Query) == "" {
		return SearchResponse{}, fmt.Errorf("%w: empty query text", store.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return SearchResponse{}, err
	}

	k := req.K
	if k <= 0 {
		k = defaultK
	}
	nowMS := e.now().UnixMilli()

	qid, err := e.store.RecordQuery(req.Workspace, req.Query, req.Embedding, nowMS)
	if err != nil {
		return SearchResponse{}, err
	}
	qhash := store.QueryHash(req.Query)

	coeffs := e.coeffs
	if req.Baseline {
		coeffs = coeffs.Baseline()
	}

	dwell, err := e.store.DwellStats(req.Workspace)
	if err != nil {
		return SearchResponse{}, err
	}

	transferQIDs, crossQIDs, err := e.transferSets(req.Workspace, req.Embedding, qhash)
	if err != nil {
		return SearchResponse{}, err
	}

	resp := SearchResponse{QueryID: qid}
	for _, cand := range req.Candidates {
		item, reason, err := e.resolveCandidate(req.Workspace, cand)
		if err != nil {
			return SearchResponse{}, err
		}
		if reason != "" {
			resp.Skipped = append(resp.Skipped, Skipped{Ref: candidateRef(cand), Reason: reason})
			continue
		}
		if req.Concept != "" && scoring.ConceptSimilarity(item.Concept, req.Concept) == 0 {
			continue
		}

		learned, err := e.learnedTerm(req.Workspace, qhash, item, transferQIDs, crossQIDs, dwell, nowMS)
		if err != nil {
			return SearchResponse{}, err
		}
		concept := scoring.ConceptSimilarity(item.Concept, req.Query)
		recency := scoring.Recency(nowMS, item.CreatedTS, coeffs)

		b := scoring.Compose(cand.Semantic, learned, concept, recency, coeffs)
		r := Result{Item: item, Score: b.Total}
		if req.Explain {
			r.Breakdown = &b
		}
		resp.Results = append(resp.Results, r)
	}

	sort.Slice(resp.Results, func(i, j int) bool {
		return scoring.Before(resp.Results[i].Score, resp.Results[j].Score,
			resp.Results[i].Item.ID, resp.Results[j].Item.ID)
	})
	if len(resp.Results) > k {
		resp.Results = resp.Results[:k]
	}

	e.log.Debug("search ranked",
		"workspace", req.Workspace, "query_id", qid,
		"candidates", len(req.Candidates), "returned", len(resp.Results),
		"skipped", len(resp.Skipped), "baseline", req.Baseline)
	return resp, nil
}

// transferSets resolves the similar-query id sets used for evidence
// transfer. Both are empty when no embedding was supplied.
func (e *Engine) transferSets(workspace string, embedding []float32, qhash string) (transfer, cross []string, err error) {
	if len(embedding) == 0 {
		return nil, nil, nil
	}

	matches, err := e.store.SimilarQueries(workspace, embedding,
		e.coeffs.SimilarityThreshold, e.coeffs.TransferLimit, qhash)
	if err != nil {
		return nil, nil, fmt.Errorf("finding similar queries: %w", err)
	}
	for _, m := range matches {
		transfer = append(transfer, m.QueryID)
	}

	if e.cross {
		matches, err = e.store.SimilarQueriesAcross(workspace, embedding,
			e.coeffs.SimilarityThreshold, e.coeffs.TransferLimit, qhash)
		if err != nil {
			return nil, nil, fmt.Errorf("finding cross-workspace queries: %w", err)
		}
		for _, m := range matches {
			cross = append(cross, m.QueryID)
		}
	}
	return transfer, cross, nil
}

// learnedTerm computes the full learned contribution for one item: direct
// evidence from same-text queries plus discounted transfer evidence.
// Cross-workspace evidence joins through the item's content hash, since
// interactions always reference workspace-local items.
func (e *Engine) learnedTerm(workspace, qhash string, item store.Item, transferQIDs, crossQIDs []string, dwell store.DwellDistribution, nowMS int64) (float64, error) {
	directIxs, err := e.store.InteractionsForQueryHash(workspace, qhash, item.ID, nowMS)
	if err != nil {
		return 0, err
	}
	direct := scoring.LearnedWeight(directIxs, dwell, nowMS, e.coeffs)

	transfer := scoring.Neutral()
	if len(transferQIDs) > 0 {
		ixs, err := e.store.InteractionsForQueries(item.ID, transferQIDs, nowMS)
		if err != nil {
			return 0, err
		}
		transfer = scoring.LearnedWeight(ixs, dwell, nowMS, e.coeffs)
	}

	cross := scoring.Neutral()
	if len(crossQIDs) > 0 {
		ixs, err := e.store.InteractionsForQueriesByHash(item.ContentHash, crossQIDs, nowMS)
		if err != nil {
			return 0, err
		}
		cross = scoring.LearnedWeight(ixs, dwell, nowMS, e.coeffs)
	}

	return scoring.LearnedTerm(direct, transfer, cross, e.coeffs), nil
}

// resolveCandidate maps a candidate reference to a stored item. A non-empty
// reason means the candidate should be skipped; an error means the lookup
// itself failed.
func (e *Engine) resolveCandidate(workspace string, cand Candidate) (store.Item, string, error) {
	if math.IsNaN(cand.Semantic) || cand.Semantic < 0 || cand.Semantic > 1 {
		return store.Item{}, fmt.Sprintf("semantic score %v outside [0, 1]", cand.Semantic), nil
	}

	var item store.Item
	var err error
	switch {
	case cand.ItemID != "":
		item, err = e.store.GetItem(cand.ItemID)
	case cand.Path != "":
		item, err = e.store.GetItemByPath(workspace, cand.Path)
	default:
		return store.Item{}, "no item id or path", nil
	}
	if err == store.ErrNotFound {
		return store.Item{}, "item not indexed", nil
	}
	if err != nil {
		return store.Item{}, "", err
	}
	if item.Workspace != workspace {
		return store.Item{}, fmt.Sprintf("item belongs to workspace %q", item.Workspace), nil
	}
	return item, "", nil
}

func candidateRef(c Candidate) string {
	if c.ItemID != "" {
		return c.ItemID
	}
	return c.Path
}
