package engine

import (
	"log/slog"
	"time"

	"github.com/kalambet/rankd/internal/scoring"
	"github.com/kalambet/rankd/internal/store"
)

// Engine ties the store and the scoring model together: it owns the
// read-modify-score cycle behind every search, feedback, and indexing call.
// All methods are safe for concurrent use; the store serializes writes.
type Engine struct {
	store  *store.Store
	coeffs scoring.Coefficients
	cross  bool
	log    *slog.Logger
	now    func() time.Time
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Coefficients *scoring.Coefficients
	// CrossWorkspace allows transferred evidence from other workspaces'
	// similar queries. Off by default; the a6 discount applies when on.
	CrossWorkspace bool
	Logger         *slog.Logger
	// Now overrides the clock. Tests use it to pin scoring timestamps.
	Now func() time.Time
}

// New creates an Engine over an opened store.
func New(st *store.Store, opts Options) *Engine {
	e := &Engine{
		store:  st,
		coeffs: scoring.Defaults(),
		cross:  opts.CrossWorkspace,
		log:    opts.Logger,
		now:    opts.Now,
	}
	if opts.Coefficients != nil {
		e.coeffs = *opts.Coefficients
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Coefficients returns the active calibration.
func (e *Engine) Coefficients() scoring.Coefficients {
	return e.coeffs
}

// Store exposes the underlying store for surfaces that need direct reads
// (stats, workspace listing).
func (e *Engine) Store() *store.Store {
	return e.store
}
