package paths

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"

	"github.com/charlievieth/fastwalk"
)

type result struct {
	entry Entry
	err   error
}

// Parallel walks root with fastwalk using workers goroutines and yields entries as they are
// found. Order is not defined. Stopping the iteration early cancels the walk.
func Parallel(ctx context.Context, root string, workers int, opts Options) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		results := make(chan result, 256)
		done := make(chan error, 1)

		send := func(r result) error {
			select {
			case results <- r:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		go func() {
			defer close(results)

			conf := fastwalk.Config{
				Follow:     false,
				NumWorkers: workers,
			}

			done <- fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return send(result{entry: Entry{Path: p, Rel: rel(root, p)}, err: fmt.Errorf("walk %s: %w", p, err)})
				}

				if p == root {
					return nil
				}

				info, err := d.Info()
				if err != nil {
					return send(result{entry: Entry{Path: p, Rel: rel(root, p)}, err: fmt.Errorf("stat %s: %w", p, err)})
				}

				if d.IsDir() && opts.SkipDir != nil && opts.SkipDir(p, info) {
					return fastwalk.SkipDir
				}

				return send(result{entry: Entry{Path: p, Rel: rel(root, p), Info: info}})
			})
		}()

		for r := range results {
			if !yield(r.entry, r.err) {
				cancel()
				for range results {
				}
				return
			}
		}

		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			yield(Entry{Path: root, Rel: "."}, fmt.Errorf("walk %s: %w", root, err))
		}
	}
}

func rel(root string, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}
