package store

import (
	"database/sql"
	"fmt"
)

// WorkspaceStats is the aggregate summary for one workspace.
type WorkspaceStats struct {
	Workspace         string  `json:"workspace"`
	TotalItems        int64   `json:"total_items"`
	TotalQueries      int64   `json:"total_queries"`
	TotalInteractions int64   `json:"total_interactions"`
	AvgUseful         float64 `json:"avg_useful"`
	AvgDwellMS        float64 `json:"avg_dwell_ms"`
	AvgClickRank      float64 `json:"avg_click_rank"`
	LastActivityTS    int64   `json:"last_activity_ts"` // unix ms; 0 if no queries yet
}

// Stats aggregates counts and averages for a workspace. Read-only.
func (s *Store) Stats(workspace string) (WorkspaceStats, error) {
	st := WorkspaceStats{Workspace: workspace}

	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM items WHERE workspace = ?`, workspace,
	).Scan(&st.TotalItems); err != nil {
		return WorkspaceStats{}, fmt.Errorf("counting items: %w", err)
	}

	if err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(MAX(issued_ts), 0) FROM queries WHERE workspace = ?`, workspace,
	).Scan(&st.TotalQueries, &st.LastActivityTS); err != nil {
		return WorkspaceStats{}, fmt.Errorf("counting queries: %w", err)
	}

	var avgUseful, avgDwell, avgRank sql.NullFloat64
	if err := s.db.QueryRow(
		`SELECT COUNT(*), AVG(i.useful),
		        AVG(CASE WHEN i.dwell_ms > 0 THEN i.dwell_ms END),
		        AVG(CASE WHEN i.click_rank > 0 THEN i.click_rank END)
		 FROM interactions i
		 JOIN queries q ON i.qid = q.qid
		 WHERE q.workspace = ?`, workspace,
	).Scan(&st.TotalInteractions, &avgUseful, &avgDwell, &avgRank); err != nil {
		return WorkspaceStats{}, fmt.Errorf("aggregating interactions: %w", err)
	}
	st.AvgUseful = avgUseful.Float64
	st.AvgDwellMS = avgDwell.Float64
	st.AvgClickRank = avgRank.Float64

	return st, nil
}
