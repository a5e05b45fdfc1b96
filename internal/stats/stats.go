package stats

import (
	"fmt"

	"github.com/kalambet/rankd/internal/store"
)

// Report is the side-by-side view over several workspaces, ordered as
// requested.
type Report struct {
	Workspaces []store.WorkspaceStats `json:"workspaces"`
}

// Summarize returns aggregate statistics for one workspace. Unknown
// workspaces report zeros rather than failing: an empty workspace and a
// nonexistent one are indistinguishable by design, since workspaces come
// into being lazily on first write.
func Summarize(st *store.Store, workspace string) (store.WorkspaceStats, error) {
	return st.Stats(workspace)
}

// Compare collects statistics for each named workspace. With no names, all
// known workspaces are compared.
func Compare(st *store.Store, workspaces []string) (Report, error) {
	if len(workspaces) == 0 {
		known, err := st.ListWorkspaces()
		if err != nil {
			return Report{}, fmt.Errorf("listing workspaces: %w", err)
		}
		workspaces = known
	}

	r := Report{Workspaces: make([]store.WorkspaceStats, 0, len(workspaces))}
	for _, ws := range workspaces {
		s, err := st.Stats(ws)
		if err != nil {
			return Report{}, fmt.Errorf("stats for %q: %w", ws, err)
		}
		r.Workspaces = append(r.Workspaces, s)
	}
	return r, nil
}
