package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/rankd/internal/store"
)

// FeedbackRequest records one interaction. The query is referenced by
// QueryID when the caller kept it from a search response; otherwise Query
// text resolves to the latest matching query event, or creates one so that
// feedback arriving out of band is never lost. The item is referenced by
// ItemID or Path.
type FeedbackRequest struct {
	Workspace string
	QueryID   string
	Query     string
	ItemID    string
	Path      string
	Useful    int // -1, 0, +1
	DwellMS   int64
	ClickRank int // 1-based position clicked; 0 = not observed
}

// Feedback appends one immutable interaction event and returns its id.
func (e *Engine) Feedback(ctx context.Context, req FeedbackRequest) (string, error) {
	if strings.TrimSpace(req.Workspace) == "" {
		return "", fmt.Errorf("%w: empty workspace", store.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	nowMS := e.now().UnixMilli()

	qid, err := e.resolveFeedbackQuery(req, nowMS)
	if err != nil {
		return "", err
	}

	itemID := req.ItemID
	if itemID == "" {
		if strings.TrimSpace(req.Path) == "" {
			return "", fmt.Errorf("%w: feedback needs an item id or path", store.ErrInvalidInput)
		}
		item, err := e.store.GetItemByPath(req.Workspace, req.Path)
		if err == store.ErrNotFound {
			return "", fmt.Errorf("%w: no item at path %q in workspace %q", store.ErrBadReference, req.Path, req.Workspace)
		}
		if err != nil {
			return "", err
		}
		itemID = item.ID
	}

	id, err := e.store.RecordInteraction(qid, itemID, req.Useful, req.DwellMS, req.ClickRank, nowMS)
	if err != nil {
		return "", err
	}
	e.log.Debug("recorded feedback",
		"workspace", req.Workspace, "query_id", qid, "item_id", itemID,
		"useful", req.Useful, "dwell_ms", req.DwellMS, "click_rank", req.ClickRank)
	return id, nil
}

// resolveFeedbackQuery picks the query event the interaction attaches to.
// An explicit id wins; otherwise the most recent query with the same
// normalized text, creating a fresh (embedding-less) query event if none
// exists yet.
func (e *Engine) resolveFeedbackQuery(req FeedbackRequest, nowMS int64) (string, error) {
	if req.QueryID != "" {
		return req.QueryID, nil
	}
	if strings.TrimSpace(req.Query) == "" {
		return "", fmt.Errorf("%w: feedback needs a query id or query text", store.ErrInvalidInput)
	}

	q, err := e.store.LatestQueryByHash(req.Workspace, store.QueryHash(req.Query))
	if err == nil {
		return q.ID, nil
	}
	if err != store.ErrNotFound {
		return "", err
	}
	return e.store.RecordQuery(req.Workspace, req.Query, nil, nowMS)
}
