// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ManuGH/tourcast/internal/log"
	"github.com/rs/zerolog"
)

// RunContext owns the per-run working tree and the teardown stack.
type RunContext struct {
	ID          string
	WorkDir     string
	AudioDir    string
	ClipDir     string
	AssemblyDir string
	Logger      zerolog.Logger

	mu       sync.Mutex
	teardown []teardownFunc
	closed   bool
}

type teardownFunc struct {
	name string
	fn   func(context.Context) error
}

// NewRunContext creates the work directories for run id. When dir is empty the
// run gets its own directory under root. An explicit dir is never removed, nor
// is any directory when keep is set.
func NewRunContext(ctx context.Context, id, root, dir string, keep bool) (*RunContext, error) {
	explicit := dir != ""
	if !explicit {
		dir = filepath.Join(root, "run-"+id)
	}
	rc := &RunContext{
		ID:          id,
		WorkDir:     dir,
		AudioDir:    filepath.Join(dir, "audio"),
		ClipDir:     filepath.Join(dir, "clips"),
		AssemblyDir: filepath.Join(dir, "assembly"),
		Logger:      log.WithComponentFromContext(ctx, "pipeline").With().Str(log.FieldWorkDir, dir).Logger(),
	}
	for _, d := range []string{rc.AudioDir, rc.ClipDir, rc.AssemblyDir} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
	}
	switch {
	case keep:
		rc.Logger.Info().Msg("work directory will be kept")
	case explicit:
		// clips and assembly intermediates are still disposable; audio is reusable.
		rc.Defer("remove clips", func(context.Context) error { return os.RemoveAll(rc.ClipDir) })
		rc.Defer("remove assembly", func(context.Context) error { return os.RemoveAll(rc.AssemblyDir) })
	default:
		rc.Defer("remove work dir", func(context.Context) error { return os.RemoveAll(rc.WorkDir) })
	}
	return rc, nil
}

// Defer pushes fn onto the teardown stack.
func (rc *RunContext) Defer(name string, fn func(context.Context) error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.teardown = append(rc.teardown, teardownFunc{name: name, fn: fn})
}

// Close runs the teardown stack in LIFO order. Every entry runs even when an
// earlier one fails. Close is idempotent.
func (rc *RunContext) Close(ctx context.Context) error {
	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return nil
	}
	rc.closed = true
	stack := rc.teardown
	rc.teardown = nil
	rc.mu.Unlock()

	var errs []error
	for i := len(stack) - 1; i >= 0; i-- {
		t := stack[i]
		if err := t.fn(ctx); err != nil {
			rc.Logger.Warn().Err(err).Str("teardown", t.name).Msg("teardown step failed")
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}
