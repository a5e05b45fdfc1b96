package store

import (
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// RecordInteraction appends one immutable feedback event. The query and
// item must both exist and belong to the same workspace; anything else is
// ErrBadReference so the caller can retry with corrected ids.
func (s *Store) RecordInteraction(qid, itemID string, useful int, dwellMS int64, clickRank int, nowMS int64) (string, error) {
	if useful < -1 || useful > 1 {
		return "", fmt.Errorf("%w: useful must be -1, 0, or +1 (got %d)", ErrInvalidInput, useful)
	}
	if dwellMS < 0 {
		return "", fmt.Errorf("%w: negative dwell time", ErrInvalidInput)
	}
	if clickRank < 0 {
		return "", fmt.Errorf("%w: negative click rank", ErrInvalidInput)
	}

	var queryWS string
	err := s.db.QueryRow(`SELECT workspace FROM queries WHERE qid = ?`, qid).Scan(&queryWS)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: query %s does not exist", ErrBadReference, qid)
	}
	if err != nil {
		return "", fmt.Errorf("resolving query %s: %w", qid, err)
	}

	var itemWS string
	err = s.db.QueryRow(`SELECT workspace FROM items WHERE item_id = ?`, itemID).Scan(&itemWS)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: item %s does not exist", ErrBadReference, itemID)
	}
	if err != nil {
		return "", fmt.Errorf("resolving item %s: %w", itemID, err)
	}

	if queryWS != itemWS {
		return "", fmt.Errorf("%w: query belongs to workspace %q, item to %q", ErrBadReference, queryWS, itemWS)
	}

	id := uuid.New().String()
	_, err = s.db.Exec(
		`INSERT INTO interactions (id, qid, item_id, useful, dwell_ms, click_rank, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, qid, itemID, useful, dwellMS, clickRank, nowMS,
	)
	if err != nil {
		return "", fmt.Errorf("inserting interaction: %w", err)
	}
	return id, nil
}

// InteractionsFor returns all interactions for an item up to asOfMS,
// ordered by timestamp ascending.
func (s *Store) InteractionsFor(itemID string, asOfMS int64) ([]Interaction, error) {
	return s.queryInteractions(
		`SELECT id, qid, item_id, useful, dwell_ms, click_rank, ts
		 FROM interactions WHERE item_id = ? AND ts <= ?
		 ORDER BY ts ASC`, itemID, asOfMS)
}

// InteractionsForQueryHash returns an item's interactions restricted to
// query events sharing a text hash — the "direct evidence" set for a query.
func (s *Store) InteractionsForQueryHash(workspace, qhash, itemID string, asOfMS int64) ([]Interaction, error) {
	return s.queryInteractions(
		`SELECT i.id, i.qid, i.item_id, i.useful, i.dwell_ms, i.click_rank, i.ts
		 FROM interactions i
		 JOIN queries q ON i.qid = q.qid
		 WHERE q.workspace = ? AND q.qhash = ? AND i.item_id = ? AND i.ts <= ?
		 ORDER BY i.ts ASC`, workspace, qhash, itemID, asOfMS)
}

// InteractionsForQueries returns an item's interactions restricted to the
// given query ids — the transferred-evidence set built from similar queries.
func (s *Store) InteractionsForQueries(itemID string, qids []string, asOfMS int64) ([]Interaction, error) {
	if len(qids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat(",?", len(qids)-1)
	args := make([]any, 0, len(qids)+2)
	args = append(args, itemID)
	for _, q := range qids {
		args = append(args, q)
	}
	args = append(args, asOfMS)
	return s.queryInteractions(
		`SELECT id, qid, item_id, useful, dwell_ms, click_rank, ts
		 FROM interactions WHERE item_id = ? AND qid IN (?`+placeholders+`) AND ts <= ?
		 ORDER BY ts ASC`, args...)
}

// InteractionsForQueriesByHash is the cross-workspace analog of
// InteractionsForQueries: interactions live on workspace-local items, so
// evidence travels between workspaces through shared content identity.
// Matches every item carrying the content hash, in any workspace.
func (s *Store) InteractionsForQueriesByHash(contentHash string, qids []string, asOfMS int64) ([]Interaction, error) {
	if len(qids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat(",?", len(qids)-1)
	args := make([]any, 0, len(qids)+2)
	args = append(args, contentHash)
	for _, q := range qids {
		args = append(args, q)
	}
	args = append(args, asOfMS)
	return s.queryInteractions(
		`SELECT i.id, i.qid, i.item_id, i.useful, i.dwell_ms, i.click_rank, i.ts
		 FROM interactions i
		 JOIN items it ON i.item_id = it.item_id
		 WHERE it.content_hash = ? AND i.qid IN (?`+placeholders+`) AND i.ts <= ?
		 ORDER BY i.ts ASC`, args...)
}

func (s *Store) queryInteractions(query string, args ...any) ([]Interaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		var ix Interaction
		if err := rows.Scan(&ix.ID, &ix.QueryID, &ix.ItemID, &ix.Useful, &ix.DwellMS, &ix.ClickRank, &ix.TS); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		results = append(results, ix)
	}
	return results, rows.Err()
}

// DwellDistribution summarizes observed dwell times in a workspace, used to
// z-score individual dwell signals.
type DwellDistribution struct {
	Count  int
	Mean   float64
	StdDev float64
}

// DwellStats returns the dwell-time distribution over a workspace's
// interactions. Interactions without an observed dwell are excluded.
func (s *Store) DwellStats(workspace string) (DwellDistribution, error) {
	rows, err := s.db.Query(
		`SELECT i.dwell_ms
		 FROM interactions i
		 JOIN queries q ON i.qid = q.qid
		 WHERE q.workspace = ? AND i.dwell_ms > 0`, workspace)
	if err != nil {
		return DwellDistribution{}, fmt.Errorf("querying dwell times: %w", err)
	}
	defer rows.Close()

	var dwells []float64
	for rows.Next() {
		var d int64
		if err := rows.Scan(&d); err != nil {
			return DwellDistribution{}, fmt.Errorf("scanning dwell time: %w", err)
		}
		dwells = append(dwells, float64(d))
	}
	if err := rows.Err(); err != nil {
		return DwellDistribution{}, err
	}

	dist := DwellDistribution{Count: len(dwells)}
	if dist.Count == 0 {
		return dist, nil
	}
	var sum float64
	for _, d := range dwells {
		sum += d
	}
	dist.Mean = sum / float64(dist.Count)
	var sq float64
	for _, d := range dwells {
		sq += (d - dist.Mean) * (d - dist.Mean)
	}
	dist.StdDev = math.Sqrt(sq / float64(dist.Count))
	return dist, nil
}
