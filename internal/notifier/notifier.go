// Package notifier posts run outcomes to chat webhooks.
package notifier

import (
	"context"

	"VelArchiver/internal/pipeline"
	"VelArchiver/internal/prune"
)

const (
	EventSuccess = "success"
	EventWarning = "warning"
	EventError   = "error"
	EventPrune   = "prune"
)

// Events lists every event name accepted in notifications.discord.events.
var Events = []string{EventSuccess, EventWarning, EventError, EventPrune}

type Notifier interface {
	// NotifyRun reports a finished run as success, or as warning when the
	// report carries failures.
	NotifyRun(ctx context.Context, rep *pipeline.Report) error
	NotifyError(ctx context.Context, err error) error
	NotifyPrune(ctx context.Context, res *prune.Result) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) NotifyRun(context.Context, *pipeline.Report) error { return nil }
func (Nop) NotifyError(context.Context, error) error          { return nil }
func (Nop) NotifyPrune(context.Context, *prune.Result) error  { return nil }
