package store

import (
	"container/heap"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// RecordQuery appends a query event. Every issued search gets its own row;
// queries are never deduplicated. An embedding may be nil (feedback on a
// query that was never searched with one), but when present its
// dimensionality must agree with prior embeddings in the workspace.
func (s *Store) RecordQuery(workspace, text string, embedding []float32, nowMS int64) (string, error) {
	if err := s.ensureWorkspace(workspace, nowMS); err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty query text", ErrInvalidInput)
	}

	var blob []byte
	dim := 0
	if len(embedding) > 0 {
		var priorDim int
		err := s.db.QueryRow(
			`SELECT dim FROM queries WHERE workspace = ? AND dim > 0 LIMIT 1`,
			workspace,
		).Scan(&priorDim)
		if err != nil && err != sql.ErrNoRows {
			return "", fmt.Errorf("checking embedding dimensionality: %w", err)
		}
		if err == nil && priorDim != len(embedding) {
			return "", fmt.Errorf("%w: embedding dimensionality %d does not match workspace dimensionality %d",
				ErrInvalidInput, len(embedding), priorDim)
		}
		blob = encodeFloat32s(embedding)
		dim = len(embedding)
	}

	qid := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO queries (qid, workspace, query_text, issued_ts, qhash, embedding, dim)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		qid, workspace, text, nowMS, QueryHash(text), blob, dim,
	)
	if err != nil {
		return "", fmt.Errorf("inserting query: %w", err)
	}
	return qid, nil
}

// GetQuery returns the query with the given id.
func (s *Store) GetQuery(qid string) (Query, error) {
	var q Query
	var blob []byte
	err := s.db.QueryRow(
		`SELECT qid, workspace, query_text, issued_ts, qhash, embedding
		 FROM queries WHERE qid = ?`, qid,
	).Scan(&q.ID, &q.Workspace, &q.Text, &q.IssuedTS, &q.Hash, &blob)
	if err == sql.ErrNoRows {
		return Query{}, ErrNotFound
	}
	if err != nil {
		return Query{}, fmt.Errorf("scanning query: %w", err)
	}
	if len(blob) > 0 {
		if q.Embedding, err = decodeFloat32s(blob); err != nil {
			return Query{}, fmt.Errorf("decoding embedding for %s: %w", qid, err)
		}
	}
	return q, nil
}

// LatestQueryByHash returns the most recent query event in a workspace with
// the given normalized text hash.
func (s *Store) LatestQueryByHash(workspace, qhash string) (Query, error) {
	var q Query
	var blob []byte
	err := s.db.QueryRow(
		`SELECT qid, workspace, query_text, issued_ts, qhash, embedding
		 FROM queries WHERE workspace = ? AND qhash = ?
		 ORDER BY issued_ts DESC LIMIT 1`, workspace, qhash,
	).Scan(&q.ID, &q.Workspace, &q.Text, &q.IssuedTS, &q.Hash, &blob)
	if err == sql.ErrNoRows {
		return Query{}, ErrNotFound
	}
	if err != nil {
		return Query{}, fmt.Errorf("scanning query: %w", err)
	}
	if len(blob) > 0 {
		if q.Embedding, err = decodeFloat32s(blob); err != nil {
			return Query{}, fmt.Errorf("decoding embedding for %s: %w", q.ID, err)
		}
	}
	return q, nil
}

// SimilarQueries finds stored queries whose embeddings are cosine-similar to
// the probe, within one workspace, ordered by descending similarity and
// capped at limit. Queries sharing excludeQHash are skipped so an issued
// query can never transfer signal to itself (or to other events with the
// same text — those count as direct evidence).
func (s *Store) SimilarQueries(workspace string, embedding []float32, threshold float64, limit int, excludeQHash string) ([]QueryMatch, error) {
	return s.similarQueries(
		`SELECT qid, workspace, qhash, embedding FROM queries WHERE workspace = ? AND dim > 0`,
		workspace, embedding, threshold, limit, excludeQHash)
}

// SimilarQueriesAcross is SimilarQueries over every workspace except the
// given one. Used for cross-workspace transfer.
func (s *Store) SimilarQueriesAcross(excludeWorkspace string, embedding []float32, threshold float64, limit int, excludeQHash string) ([]QueryMatch, error) {
	return s.similarQueries(
		`SELECT qid, workspace, qhash, embedding FROM queries WHERE workspace != ? AND dim > 0`,
		excludeWorkspace, embedding, threshold, limit, excludeQHash)
}

func (s *Store) similarQueries(query, workspaceArg string, embedding []float32, threshold float64, limit int, excludeQHash string) ([]QueryMatch, error) {
	if limit <= 0 || len(embedding) == 0 {
		return nil, nil
	}
	probeNorm := norm(embedding)
	if probeNorm == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(query, workspaceArg)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	h := &matchHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var qid, workspace, qhash string
		var blob []byte
		if err := rows.Scan(&qid, &workspace, &qhash, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if qhash == excludeQHash {
			continue
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", qid, err)
		}

		sim := cosine(embedding, buf, probeNorm)
		if sim < threshold {
			continue
		}

		m := QueryMatch{QueryID: qid, Workspace: workspace, Similarity: sim}
		if h.Len() < limit {
			heap.Push(h, m)
		} else if sim > (*h)[0].Similarity {
			(*h)[0] = m
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	// Pop the min-heap back to front for descending order.
	matches := make([]QueryMatch, h.Len())
	for i := len(matches) - 1; i >= 0; i-- {
		matches[i] = heap.Pop(h).(QueryMatch)
	}
	return matches, nil
}

// matchHeap is a min-heap of QueryMatch ordered by Similarity. Used to track
// the top-K candidates during the similarity scan.
type matchHeap []QueryMatch

func (h matchHeap) Len() int           { return len(h) }
func (h matchHeap) Less(i, j int) bool { return h[i].Similarity < h[j].Similarity }
func (h matchHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x any)        { *h = append(*h, x.(QueryMatch)) }
func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
