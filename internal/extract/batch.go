package extract

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// extractConcurrency bounds parallel file parsing; PDF extraction in
// particular is CPU-heavy.
const extractConcurrency = 4

// Files extracts every path concurrently, preserving input order in the
// result. The first failure cancels the remaining work.
func Files(ctx context.Context, paths []string) ([]Document, error) {
	docs := make([]Document, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := File(path)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Dir walks a directory tree and extracts every regular file, skipping
// hidden entries and unextractable files rather than failing the walk.
// Returns the documents alongside the paths that were skipped.
func Dir(ctx context.Context, root string) ([]Document, []string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Per-file failures are tolerated: a binary blob in the tree should not
	// abort the whole indexing run.
	extracted := make([]Document, len(paths))
	failed := make([]bool, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := File(path)
			if err != nil {
				failed[i] = true
				return nil
			}
			extracted[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var skipped []string
	docs := make([]Document, 0, len(paths))
	for i := range paths {
		if failed[i] {
			skipped = append(skipped, paths[i])
			continue
		}
		docs = append(docs, extracted[i])
	}
	return docs, skipped, nil
}
