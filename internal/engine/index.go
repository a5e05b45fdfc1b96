package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/rankd/internal/store"
)

// IndexRequest describes one item to index. Content is the raw text used
// for the content hash; it is not stored.
type IndexRequest struct {
	Path    string
	Content string
	Concept string
}

// Index registers (or re-registers) one item in a workspace. Indexing the
// same content twice is a no-op on identity: the existing item id is
// returned and its path and concept are refreshed.
func (e *Engine) Index(ctx context.Context, workspace string, req IndexRequest) (store.Item, error) {
	if strings.TrimSpace(workspace) == "" {
		return store.Item{}, fmt.Errorf("%w: empty workspace", store.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Path) == "" {
		return store.Item{}, fmt.Errorf("%w: empty item path", store.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return store.Item{}, err
	}

	item, err := e.store.UpsertItem(workspace, req.Path, req.Content, req.Concept, e.now().UnixMilli())
	if err != nil {
		return store.Item{}, err
	}
	e.log.Debug("indexed item",
		"workspace", workspace, "path", req.Path, "item_id", item.ID, "content_hash", item.ContentHash)
	return item, nil
}

// IndexBatch indexes a set of items, stopping at the first failure. Items
// are written in order so partial progress is a prefix of the input.
func (e *Engine) IndexBatch(ctx context.Context, workspace string, reqs []IndexRequest) ([]store.Item, error) {
	items := make([]store.Item, 0, len(reqs))
	for _, req := range reqs {
		item, err := e.Index(ctx, workspace, req)
		if err != nil {
			return items, fmt.Errorf("indexing %s: %w", req.Path, err)
		}
		items = append(items, item)
	}
	return items, nil
}
