package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput marks malformed caller input: empty workspace names,
// missing embeddings, or an embedding whose dimensionality disagrees with
// prior records in the workspace.
var ErrInvalidInput = errors.New("invalid input")

// ErrBadReference marks feedback that references a query or item that does
// not exist, or that belongs to a different workspace.
var ErrBadReference = errors.New("bad reference")

// Item is one indexed unit of content. Identity within a workspace is the
// content hash; the path is a mutable attribute, so renames update the
// existing row instead of forking a duplicate.
type Item struct {
	ID          string `json:"id"`
	Workspace   string `json:"workspace"`
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	Concept     string `json:"concept,omitempty"`
	CreatedTS   int64  `json:"created_ts"` // unix milliseconds
}

// Query is one issued search request. Queries are an event log: the same
// text issued twice produces two rows, each with its own timestamp.
type Query struct {
	ID        string
	Workspace string
	Text      string
	IssuedTS  int64 // unix milliseconds
	Hash      string
	Embedding []float32 // nil when the caller supplied none
}

// Interaction is one feedback event linking a query to an item. Rows are
// immutable once written; corrections are new interactions.
type Interaction struct {
	ID        string
	QueryID   string
	ItemID    string
	Useful    int   // +1, 0, or -1
	DwellMS   int64 // 0 = not observed
	ClickRank int   // 1-based; 0 = not observed
	TS        int64 // unix milliseconds
}

// QueryMatch pairs a stored query with its cosine similarity to a probe
// embedding.
type QueryMatch struct {
	QueryID    string
	Workspace  string
	Similarity float64
}

// ContentHash derives the stable item identity from content. Truncated
// SHA-256, matching the width used for display everywhere else.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:12]
}

// QueryHash normalizes query text for fast equality checks between query
// events. Case-insensitive.
func QueryHash(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])[:16]
}
