package store

import (
	"errors"
	"testing"
)

const nowMS = int64(1_700_000_000_000)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenOnDiskIsReentrant(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := s1.UpsertItem("w1", "a.py", "content", "", nowMS); err != nil {
		t.Fatalf("upserting item: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	// Reopening must not re-run migrations or lose data.
	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	n, err := s2.CountItems("w1")
	if err != nil {
		t.Fatalf("counting items: %v", err)
	}
	if n != 1 {
		t.Errorf("items after reopen = %d, want 1", n)
	}
}

func TestUpsertItemIdempotentOnContent(t *testing.T) {
	s := newTestStore(t)

	first, err := s.UpsertItem("w1", "a.py", "jwt decode", "jwt", nowMS)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.ID == "" || first.ContentHash == "" || first.CreatedTS != nowMS {
		t.Fatalf("incomplete item: %+v", first)
	}

	// Same content again, later: same identity, original creation time.
	second, err := s.UpsertItem("w1", "a.py", "jwt decode", "jwt", nowMS+1000)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-indexing identical content forked identity: %s vs %s", second.ID, first.ID)
	}
	if second.CreatedTS != nowMS {
		t.Errorf("CreatedTS = %d, want original %d", second.CreatedTS, nowMS)
	}

	n, _ := s.CountItems("w1")
	if n != 1 {
		t.Errorf("items = %d, want 1", n)
	}
}

func TestUpsertItemRenamePreservesIdentity(t *testing.T) {
	s := newTestStore(t)

	orig, err := s.UpsertItem("w1", "old.py", "same content", "", nowMS)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	moved, err := s.UpsertItem("w1", "new.py", "same content", "auth", nowMS+1)
	if err != nil {
		t.Fatalf("rename upsert: %v", err)
	}
	if moved.ID != orig.ID {
		t.Errorf("rename forked identity: %s vs %s", moved.ID, orig.ID)
	}
	if moved.Path != "new.py" || moved.Concept != "auth" {
		t.Errorf("attributes not updated: %+v", moved)
	}

	got, err := s.GetItemByPath("w1", "new.py")
	if err != nil {
		t.Fatalf("get by path: %v", err)
	}
	if got.ID != orig.ID {
		t.Errorf("lookup by new path = %s, want %s", got.ID, orig.ID)
	}
}

func TestUpsertItemScopedByWorkspace(t *testing.T) {
	s := newTestStore(t)

	a, _ := s.UpsertItem("w1", "a.py", "shared content", "", nowMS)
	b, err := s.UpsertItem("w2", "a.py", "shared content", "", nowMS)
	if err != nil {
		t.Fatalf("upsert in w2: %v", err)
	}
	if a.ID == b.ID {
		t.Error("identical content in different workspaces must be distinct items")
	}
	if a.ContentHash != b.ContentHash {
		t.Error("content hash should be workspace-independent")
	}
}

func TestUpsertItemValidation(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.UpsertItem("", "a.py", "x", "", nowMS); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty workspace: err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.UpsertItem("w1", "", "x", "", nowMS); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty path: err = %v, want ErrInvalidInput", err)
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetItem("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetItemByPath("w1", "ghost.py"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecordQueryAndLookup(t *testing.T) {
	s := newTestStore(t)

	emb := []float32{0.1, 0.2, 0.3}
	qid, err := s.RecordQuery("w1", "jwt validation", emb, nowMS)
	if err != nil {
		t.Fatalf("recording query: %v", err)
	}

	q, err := s.GetQuery(qid)
	if err != nil {
		t.Fatalf("getting query: %v", err)
	}
	if q.Text != "jwt validation" || q.Workspace != "w1" || q.IssuedTS != nowMS {
		t.Errorf("query = %+v", q)
	}
	if len(q.Embedding) != 3 || q.Embedding[2] != 0.3 {
		t.Errorf("embedding = %v, want round-tripped %v", q.Embedding, emb)
	}
	if q.Hash != QueryHash("jwt validation") {
		t.Errorf("hash = %q", q.Hash)
	}

	// Queries are an event log: the same text gets a new row.
	qid2, err := s.RecordQuery("w1", "JWT Validation", nil, nowMS+500)
	if err != nil {
		t.Fatalf("recording second query: %v", err)
	}
	if qid2 == qid {
		t.Error("query events must not be deduplicated")
	}

	latest, err := s.LatestQueryByHash("w1", QueryHash("jwt validation"))
	if err != nil {
		t.Fatalf("latest by hash: %v", err)
	}
	if latest.ID != qid2 {
		t.Errorf("latest = %s, want most recent event %s", latest.ID, qid2)
	}
}

func TestRecordQueryDimensionalityMismatch(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.RecordQuery("w1", "first", []float32{1, 0, 0}, nowMS); err != nil {
		t.Fatalf("first query: %v", err)
	}
	if _, err := s.RecordQuery("w1", "second", []float32{1, 0}, nowMS+1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("dim mismatch: err = %v, want ErrInvalidInput", err)
	}
	// Other workspaces have independent dimensionality.
	if _, err := s.RecordQuery("w2", "second", []float32{1, 0}, nowMS+2); err != nil {
		t.Errorf("other workspace dim: %v", err)
	}
	// Nil embeddings are always accepted.
	if _, err := s.RecordQuery("w1", "third", nil, nowMS+3); err != nil {
		t.Errorf("nil embedding: %v", err)
	}
}

func TestSimilarQueries(t *testing.T) {
	s := newTestStore(t)

	mustQuery := func(ws, text string, emb []float32, ts int64) string {
		t.Helper()
		qid, err := s.RecordQuery(ws, text, emb, ts)
		if err != nil {
			t.Fatalf("recording %q: %v", text, err)
		}
		return qid
	}

	close1 := mustQuery("w1", "token validation", []float32{0.95, 0.05, 0}, nowMS)
	mustQuery("w1", "barbecue recipes", []float32{0, 0, 1}, nowMS+1)
	mustQuery("w1", "no embedding", nil, nowMS+2)
	self := mustQuery("w1", "jwt validation", []float32{1, 0, 0}, nowMS+3)
	other := mustQuery("w2", "token checks", []float32{0.9, 0.1, 0}, nowMS+4)

	probe := []float32{1, 0, 0}
	matches, err := s.SimilarQueries("w1", probe, 0.35, 10, QueryHash("jwt validation"))
	if err != nil {
		t.Fatalf("similar queries: %v", err)
	}
	if len(matches) != 1 || matches[0].QueryID != close1 {
		t.Fatalf("matches = %+v, want only %s", matches, close1)
	}
	for _, m := range matches {
		if m.QueryID == self {
			t.Error("a query must never transfer signal to itself")
		}
	}

	across, err := s.SimilarQueriesAcross("w1", probe, 0.35, 10, QueryHash("jwt validation"))
	if err != nil {
		t.Fatalf("similar across: %v", err)
	}
	if len(across) != 1 || across[0].QueryID != other || across[0].Workspace != "w2" {
		t.Errorf("across = %+v, want only the w2 query", across)
	}
}

func TestSimilarQueriesLimitAndOrder(t *testing.T) {
	s := newTestStore(t)

	sims := []float32{0.99, 0.80, 0.90, 0.70}
	for i, x := range sims {
		if _, err := s.RecordQuery("w1", string(rune('a'+i)), []float32{x, 1 - x}, nowMS+int64(i)); err != nil {
			t.Fatalf("recording: %v", err)
		}
	}

	matches, err := s.SimilarQueries("w1", []float32{1, 0}, 0.1, 3, "")
	if err != nil {
		t.Fatalf("similar queries: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("len = %d, want capped at 3", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Errorf("matches not in descending similarity order: %+v", matches)
		}
	}
}

func TestRecordInteractionValidation(t *testing.T) {
	s := newTestStore(t)

	item, _ := s.UpsertItem("w1", "a.py", "x", "", nowMS)
	qid, _ := s.RecordQuery("w1", "q", nil, nowMS)

	tests := []struct {
		name      string
		qid, item string
		useful    int
		dwell     int64
		rank      int
		wantErr   error
	}{
		{"useful too big", qid, item.ID, 2, 0, 0, ErrInvalidInput},
		{"useful too small", qid, item.ID, -2, 0, 0, ErrInvalidInput},
		{"negative dwell", qid, item.ID, 1, -5, 0, ErrInvalidInput},
		{"negative rank", qid, item.ID, 1, 0, -1, ErrInvalidInput},
		{"ghost query", "ghost", item.ID, 1, 0, 0, ErrBadReference},
		{"ghost item", qid, "ghost", 1, 0, 0, ErrBadReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.RecordInteraction(tt.qid, tt.item, tt.useful, tt.dwell, tt.rank, nowMS)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := s.RecordInteraction(qid, item.ID, 1, 12000, 2, nowMS); err != nil {
		t.Errorf("valid interaction rejected: %v", err)
	}
}

func TestRecordInteractionRejectsCrossWorkspace(t *testing.T) {
	s := newTestStore(t)

	item, _ := s.UpsertItem("w1", "a.py", "x", "", nowMS)
	foreignQID, _ := s.RecordQuery("w2", "q", nil, nowMS)

	_, err := s.RecordInteraction(foreignQID, item.ID, 1, 0, 0, nowMS)
	if !errors.Is(err, ErrBadReference) {
		t.Errorf("cross-workspace feedback: err = %v, want ErrBadReference", err)
	}
}

func TestInteractionsForCutoffAndOrder(t *testing.T) {
	s := newTestStore(t)

	item, _ := s.UpsertItem("w1", "a.py", "x", "", nowMS)
	qid, _ := s.RecordQuery("w1", "q", nil, nowMS)

	for i, ts := range []int64{nowMS + 300, nowMS + 100, nowMS + 200} {
		if _, err := s.RecordInteraction(qid, item.ID, 1, 0, i+1, ts); err != nil {
			t.Fatalf("recording interaction: %v", err)
		}
	}

	ixs, err := s.InteractionsFor(item.ID, nowMS+200)
	if err != nil {
		t.Fatalf("interactions for: %v", err)
	}
	if len(ixs) != 2 {
		t.Fatalf("len = %d, want 2 (cutoff excludes the later event)", len(ixs))
	}
	if ixs[0].TS != nowMS+100 || ixs[1].TS != nowMS+200 {
		t.Errorf("not in ascending ts order: %+v", ixs)
	}
}

func TestInteractionsForQueryHash(t *testing.T) {
	s := newTestStore(t)

	item, _ := s.UpsertItem("w1", "a.py", "x", "", nowMS)
	jwtQID, _ := s.RecordQuery("w1", "jwt validation", nil, nowMS)
	jwtAgainQID, _ := s.RecordQuery("w1", "  JWT Validation ", nil, nowMS+1)
	otherQID, _ := s.RecordQuery("w1", "barbecue recipes", nil, nowMS+2)

	s.RecordInteraction(jwtQID, item.ID, 1, 0, 0, nowMS+10)
	s.RecordInteraction(jwtAgainQID, item.ID, 1, 0, 0, nowMS+11)
	s.RecordInteraction(otherQID, item.ID, -1, 0, 0, nowMS+12)

	ixs, err := s.InteractionsForQueryHash("w1", QueryHash("jwt validation"), item.ID, nowMS+100)
	if err != nil {
		t.Fatalf("interactions for query hash: %v", err)
	}
	// Normalized text groups both jwt events; the unrelated query stays out.
	if len(ixs) != 2 {
		t.Errorf("len = %d, want 2", len(ixs))
	}
	for _, ix := range ixs {
		if ix.QueryID == otherQID {
			t.Error("unrelated query leaked into direct evidence")
		}
	}
}

func TestInteractionsForQueries(t *testing.T) {
	s := newTestStore(t)

	item, _ := s.UpsertItem("w1", "a.py", "x", "", nowMS)
	q1, _ := s.RecordQuery("w1", "one", nil, nowMS)
	q2, _ := s.RecordQuery("w1", "two", nil, nowMS+1)

	s.RecordInteraction(q1, item.ID, 1, 0, 0, nowMS+10)
	s.RecordInteraction(q2, item.ID, 1, 0, 0, nowMS+11)

	ixs, err := s.InteractionsForQueries(item.ID, []string{q1}, nowMS+100)
	if err != nil {
		t.Fatalf("interactions for queries: %v", err)
	}
	if len(ixs) != 1 || ixs[0].QueryID != q1 {
		t.Errorf("ixs = %+v, want only q1's event", ixs)
	}

	none, err := s.InteractionsForQueries(item.ID, nil, nowMS+100)
	if err != nil || none != nil {
		t.Errorf("empty qid set should return nothing, got %v, %v", none, err)
	}
}

func TestInteractionsForQueriesByHash(t *testing.T) {
	s := newTestStore(t)

	// Same content indexed in two workspaces: distinct items, shared hash.
	itemW1, _ := s.UpsertItem("w1", "a.py", "shared auth helper", "", nowMS)
	itemW2, _ := s.UpsertItem("w2", "lib/a.py", "shared auth helper", "", nowMS)

	foreignQID, _ := s.RecordQuery("w2", "auth helpers", nil, nowMS)
	if _, err := s.RecordInteraction(foreignQID, itemW2.ID, 1, 0, 0, nowMS+10); err != nil {
		t.Fatalf("recording foreign interaction: %v", err)
	}

	// Evidence recorded against the w2 twin is reachable through the hash.
	ixs, err := s.InteractionsForQueriesByHash(itemW1.ContentHash, []string{foreignQID}, nowMS+100)
	if err != nil {
		t.Fatalf("interactions by hash: %v", err)
	}
	if len(ixs) != 1 || ixs[0].ItemID != itemW2.ID {
		t.Errorf("ixs = %+v, want the w2 twin's interaction", ixs)
	}
}

func TestDwellStats(t *testing.T) {
	s := newTestStore(t)

	empty, err := s.DwellStats("w1")
	if err != nil {
		t.Fatalf("dwell stats on empty workspace: %v", err)
	}
	if empty.Count != 0 || empty.Mean != 0 || empty.StdDev != 0 {
		t.Errorf("empty distribution = %+v", empty)
	}

	item, _ := s.UpsertItem("w1", "a.py", "x", "", nowMS)
	qid, _ := s.RecordQuery("w1", "q", nil, nowMS)
	for _, d := range []int64{1000, 3000, 0} { // zero dwell is "not observed"
		s.RecordInteraction(qid, item.ID, 0, d, 0, nowMS+d)
	}

	dist, err := s.DwellStats("w1")
	if err != nil {
		t.Fatalf("dwell stats: %v", err)
	}
	if dist.Count != 2 {
		t.Errorf("count = %d, want 2 (unobserved dwell excluded)", dist.Count)
	}
	if dist.Mean != 2000 {
		t.Errorf("mean = %v, want 2000", dist.Mean)
	}
	if dist.StdDev != 1000 {
		t.Errorf("stddev = %v, want 1000", dist.StdDev)
	}
}

func TestStatsAggregates(t *testing.T) {
	s := newTestStore(t)

	item, _ := s.UpsertItem("w1", "a.py", "x", "", nowMS)
	qid, _ := s.RecordQuery("w1", "q", nil, nowMS+50)
	s.RecordInteraction(qid, item.ID, 1, 4000, 1, nowMS+60)
	s.RecordInteraction(qid, item.ID, -1, 0, 3, nowMS+70)

	st, err := s.Stats("w1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalItems != 1 || st.TotalQueries != 1 || st.TotalInteractions != 2 {
		t.Errorf("counts = %+v", st)
	}
	if st.AvgUseful != 0 {
		t.Errorf("avg useful = %v, want 0", st.AvgUseful)
	}
	if st.AvgDwellMS != 4000 {
		t.Errorf("avg dwell = %v, want 4000 (unobserved excluded)", st.AvgDwellMS)
	}
	if st.AvgClickRank != 2 {
		t.Errorf("avg rank = %v, want 2", st.AvgClickRank)
	}
	if st.LastActivityTS != nowMS+50 {
		t.Errorf("last activity = %d, want %d", st.LastActivityTS, nowMS+50)
	}
}

func TestWorkspaceLifecycle(t *testing.T) {
	s := newTestStore(t)

	names, err := s.ListWorkspaces()
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("fresh store should have no workspaces, got %v", names)
	}

	itemW1, _ := s.UpsertItem("w1", "a.py", "x", "", nowMS)
	s.UpsertItem("w2", "b.py", "y", "", nowMS)
	qid, _ := s.RecordQuery("w1", "q", nil, nowMS)
	s.RecordInteraction(qid, itemW1.ID, 1, 0, 0, nowMS)

	names, _ = s.ListWorkspaces()
	if len(names) != 2 || names[0] != "w1" || names[1] != "w2" {
		t.Fatalf("workspaces = %v, want [w1 w2]", names)
	}

	if err := s.DeleteWorkspace("w1"); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if err := s.DeleteWorkspace("w1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}

	// Everything scoped to w1 is gone; w2 survives.
	if _, err := s.GetItem(itemW1.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("w1 item survived delete: %v", err)
	}
	if _, err := s.GetQuery(qid); !errors.Is(err, ErrNotFound) {
		t.Errorf("w1 query survived delete: %v", err)
	}
	n, _ := s.CountItems("w2")
	if n != 1 {
		t.Errorf("w2 items = %d, want 1", n)
	}
}

func TestContentAndQueryHashes(t *testing.T) {
	if len(ContentHash("x")) != 12 {
		t.Errorf("content hash width = %d, want 12", len(ContentHash("x")))
	}
	if ContentHash("a") == ContentHash("b") {
		t.Error("distinct content should hash differently")
	}

	if len(QueryHash("x")) != 16 {
		t.Errorf("query hash width = %d, want 16", len(QueryHash("x")))
	}
	if QueryHash("JWT Validation") != QueryHash("  jwt validation ") {
		t.Error("query hash should normalize case and whitespace")
	}
	if QueryHash("jwt validation") == QueryHash("session handling") {
		t.Error("distinct queries should hash differently")
	}
}
