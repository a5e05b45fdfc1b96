package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// UpsertItem indexes content under a workspace. If an item with the same
// content hash already exists there, its path and concept are updated and
// the existing id is returned — re-indexing identical content is idempotent
// and renames never fork the item's identity. The upsert runs in one
// transaction so concurrent indexing of the same content cannot produce two
// rows for one hash.
func (s *Store) UpsertItem(workspace, path, content, concept string, nowMS int64) (Item, error) {
	if err := s.ensureWorkspace(workspace, nowMS); err != nil {
		return Item{}, err
	}
	if path == "" {
		return Item{}, fmt.Errorf("%w: empty item path", ErrInvalidInput)
	}

	hash := ContentHash(content)

	tx, err := s.db.Begin()
	if err != nil {
		return Item{}, fmt.Errorf("beginning upsert transaction: %w", err)
	}

	var existing Item
	err = tx.QueryRow(
		`SELECT item_id, created_ts FROM items WHERE workspace = ? AND content_hash = ?`,
		workspace, hash,
	).Scan(&existing.ID, &existing.CreatedTS)

	switch {
	case err == sql.ErrNoRows:
		id := uuid.New().String()
		if _, err := tx.Exec(
			`INSERT INTO items (item_id, workspace, path, content_hash, concept, created_ts)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, workspace, path, hash, nullable(concept), nowMS,
		); err != nil {
			tx.Rollback()
			return Item{}, fmt.Errorf("inserting item: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return Item{}, fmt.Errorf("committing item insert: %w", err)
		}
		return Item{ID: id, Workspace: workspace, Path: path, ContentHash: hash, Concept: concept, CreatedTS: nowMS}, nil

	case err != nil:
		tx.Rollback()
		return Item{}, fmt.Errorf("looking up item by hash: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE items SET path = ?, concept = ? WHERE item_id = ?`,
		path, nullable(concept), existing.ID,
	); err != nil {
		tx.Rollback()
		return Item{}, fmt.Errorf("updating item %s: %w", existing.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Item{}, fmt.Errorf("committing item update: %w", err)
	}
	return Item{ID: existing.ID, Workspace: workspace, Path: path, ContentHash: hash, Concept: concept, CreatedTS: existing.CreatedTS}, nil
}

// GetItem returns the item with the given id.
func (s *Store) GetItem(itemID string) (Item, error) {
	return s.scanItem(s.db.QueryRow(
		`SELECT item_id, workspace, path, content_hash, concept, created_ts
		 FROM items WHERE item_id = ?`, itemID))
}

// GetItemByPath returns the item currently stored at path in a workspace.
func (s *Store) GetItemByPath(workspace, path string) (Item, error) {
	return s.scanItem(s.db.QueryRow(
		`SELECT item_id, workspace, path, content_hash, concept, created_ts
		 FROM items WHERE workspace = ? AND path = ?
		 ORDER BY created_ts DESC LIMIT 1`, workspace, path))
}

// CountItems returns the number of items in a workspace.
func (s *Store) CountItems(workspace string) (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM items WHERE workspace = ?`, workspace).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

func (s *Store) scanItem(row *sql.Row) (Item, error) {
	var it Item
	var concept sql.NullString
	err := row.Scan(&it.ID, &it.Workspace, &it.Path, &it.ContentHash, &concept, &it.CreatedTS)
	if err == sql.ErrNoRows {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("scanning item: %w", err)
	}
	it.Concept = concept.String
	return it, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
