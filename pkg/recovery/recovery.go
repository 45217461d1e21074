// Package recovery resolves relink temporaries left behind by an interrupted run.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/autobrr/prunetree/pkg/config"
	"github.com/autobrr/prunetree/pkg/hardlink"
	"github.com/autobrr/prunetree/pkg/paths"
	"github.com/autobrr/prunetree/pkg/prune"
)

type Action string

const (
	// ActionRestore renames a temporary back over its missing original.
	ActionRestore Action = "restore"
	// ActionRemove drops a temporary whose original was already relinked.
	ActionRemove Action = "remove"
	// ActionKeep leaves a temporary that cannot be resolved safely.
	ActionKeep Action = "keep"
)

type Finding struct {
	Temp     string
	Original string
	Action   Action
	Reason   string
	Err      error
}

type Result struct {
	Restored int
	Removed  int
	Kept     int
	Failed   int
	Findings []Finding
}

type Recoverer struct {
	log    *logrus.Entry
	dryRun bool
}

func New(cfg *config.Configuration, log *logrus.Entry) *Recoverer {
	return &Recoverer{
		log:    log,
		dryRun: cfg.DryRun,
	}
}

// Recover walks root and resolves every relink temporary found below it.
func (r *Recoverer) Recover(ctx context.Context, root string) (Result, error) {
	var res Result

	root, err := filepath.Abs(root)
	if err != nil {
		return res, fmt.Errorf("%s: %w: %w", root, prune.ErrNotDirectory, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return res, fmt.Errorf("%s: %w: %w", root, prune.ErrNotDirectory, err)
	}
	if !info.IsDir() {
		return res, fmt.Errorf("%s: %w", root, prune.ErrNotDirectory)
	}

	for e, err := range paths.Local(root, paths.Options{}) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}

		if err != nil {
			r.log.WithError(err).Warn("Failed reading entry, skipping...")
			continue
		}

		if e.IsDir() || !hardlink.IsTemp(e.Path) {
			continue
		}

		f := r.resolve(e.Path, e.Info)
		switch {
		case f.Err != nil:
			r.log.WithError(f.Err).Errorf("Failed to %s %s", f.Action, f.Temp)
			res.Failed++
		case f.Action == ActionRestore:
			res.Restored++
		case f.Action == ActionRemove:
			res.Removed++
		default:
			res.Kept++
		}

		res.Findings = append(res.Findings, f)
	}

	return res, nil
}

/* Private */

func (r *Recoverer) resolve(temp string, info fs.FileInfo) Finding {
	original, _ := hardlink.Original(temp)
	f := Finding{Temp: temp, Original: original}

	if !info.Mode().IsRegular() {
		f.Action = ActionKeep
		f.Reason = "temporary is not a regular file"
		r.log.Warnf("Keeping %s: %s", temp, f.Reason)
		return f
	}

	current, err := hardlink.Lstat(original)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f.Action = ActionRestore
		f.Reason = "original is missing"
	case err != nil:
		f.Action = ActionKeep
		f.Reason = fmt.Sprintf("original cannot be inspected: %v", err)
	case current.IsRegular() && current.Size == info.Size():
		f.Action = ActionRemove
		f.Reason = "original was already relinked"
	default:
		f.Action = ActionKeep
		f.Reason = "original differs from the temporary"
	}

	if f.Action == ActionKeep {
		r.log.Warnf("Keeping %s: %s", temp, f.Reason)
		return f
	}

	if r.dryRun {
		r.log.Infof("Dry-run enabled, would %s %s (%s)", f.Action, temp, f.Reason)
		return f
	}

	switch f.Action {
	case ActionRestore:
		f.Err = os.Rename(temp, original)
		if f.Err == nil {
			r.log.Infof("Restored %s", original)
		}
	case ActionRemove:
		f.Err = os.Remove(temp)
		if f.Err == nil {
			r.log.Infof("Removed %s", temp)
		}
	}

	return f
}
