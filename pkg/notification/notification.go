package notification

import (
	"context"
	"time"

	"github.com/autobrr/prunetree/pkg/prune"
	"github.com/autobrr/prunetree/pkg/recovery"
)

type Action int

const (
	ActionPrune Action = iota + 1
	ActionRecover
)

type Sender interface {
	CanSend() bool
	Send(ctx context.Context, title string, description string, runTime time.Duration, fields []Field, dryRun bool) error
	BuildField(action Action, options BuildOptions) Field
	Name() string
}

type Field struct {
	Name  string
	Value string
}

type BuildOptions struct {
	Root string

	Summary  prune.Summary
	Recovery recovery.Result

	Err error
}
