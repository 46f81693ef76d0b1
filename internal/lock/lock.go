// Package lock provides an optional best-effort guard against overlapping
// runs. It never replaces conditional deletes.
package lock

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrLocked is returned by Acquire when another holder owns the lock.
var ErrLocked = errors.New("lock held by another run")

type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Nop is used when locking is disabled.
type Nop struct{}

func (Nop) Acquire(context.Context) error { return nil }
func (Nop) Release(context.Context) error { return nil }

func safeName(name string) string {
	if name == "" || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "default"
	}
	return name
}
