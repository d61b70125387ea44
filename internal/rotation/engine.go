// Package rotation moves backup artifacts through the retention tiers.
//
// For every target the tiers are walked finest first and each tier is
// scanned oldest first. The scan stops at the first artifact young enough to
// stay. An artifact past its tier's age is promoted into the next tier unless
// that tier already holds an artifact from the same calendar window, in which
// case it is deleted. Artifacts leaving the last tier are deleted.
//
// The engine assumes it is the only writer to a target directory while it
// runs; callers serialize runs with a Locker.
package rotation

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/retention"
	"github.com/kebairia/bacli/internal/store"
	"github.com/kebairia/bacli/internal/target"
)

// LockCommand is the command name rotation locks are keyed by.
const LockCommand = "rotate"

// Locker grants exclusive access to a target for one command.
type Locker interface {
	Acquire(command, key string) (release func(), err error)
}

type Option func(*Engine)

// WithLocker makes the engine lock every target before rotating it.
func WithLocker(l Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// Engine applies a retention policy to target directories.
type Engine struct {
	root   string
	policy *retention.Policy
	store  *store.Store
	log    logger.Logger
	locker Locker
}

func NewEngine(root string, policy *retention.Policy, st *store.Store, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		root:   root,
		policy: policy,
		store:  st,
		log:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result summarizes a rotation run.
type Result struct {
	Targets       int
	FailedTargets int
	Promoted      int
	Deleted       int
	Errors        []error
}

// Err combines every recorded error, or returns nil.
func (r Result) Err() error {
	return multierr.Combine(r.Errors...)
}

// AllFailed reports whether there was work and none of it succeeded.
func (r Result) AllFailed() bool {
	return r.Targets > 0 && r.FailedTargets == r.Targets
}

// Rotate processes the targets one after the other. A failing target never
// prevents the others from being rotated; its errors are collected in the
// result.
func (e *Engine) Rotate(ctx context.Context, targets []target.Target) Result {
	var res Result
	start := time.Now()
	for _, t := range targets {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, &TargetError{Target: t, Err: ctx.Err()})
			res.Targets++
			res.FailedTargets++
			continue
		}
		promoted, deleted, errs := e.RotateTarget(ctx, t)
		res.Targets++
		res.Promoted += promoted
		res.Deleted += deleted
		if len(errs) > 0 {
			res.FailedTargets++
			res.Errors = append(res.Errors, errs...)
		}
	}

	e.log.Info("rotation completed",
		"targets", res.Targets,
		"failed_targets", res.FailedTargets,
		"promoted", res.Promoted,
		"deleted", res.Deleted,
		"errors", len(res.Errors),
		"duration", time.Since(start).String(),
	)
	return res
}

// RotateTarget runs one rotation pass over a single target directory.
func (e *Engine) RotateTarget(ctx context.Context, t target.Target) (promoted, deleted int, errs []error) {
	log := e.log.With("target", t.String())
	dir := t.Dir(e.root)

	if e.locker != nil {
		release, err := e.locker.Acquire(LockCommand, t.String())
		if err != nil {
			log.Error("target skipped", "error", err.Error())
			return 0, 0, []error{&TargetError{Target: t, Err: err}}
		}
		defer release()
	}

	if err := e.store.EnsurePeriodDirs(dir); err != nil {
		log.Error("target skipped", "error", err.Error())
		return 0, 0, []error{&TargetError{Target: t, Err: err}}
	}

	for _, period := range e.policy.Sequence() {
		p, d, tierErrs, err := e.rotateTier(ctx, log, t, dir, period)
		promoted += p
		deleted += d
		errs = append(errs, tierErrs...)
		if err != nil {
			log.Error("target aborted", "period", period.Name, "error", err.Error())
			errs = append(errs, &TargetError{Target: t, Err: err})
			return promoted, deleted, errs
		}
	}
	return promoted, deleted, errs
}

// rotateTier handles the artifacts of one period. Per-artifact failures are
// returned in errs; a non-nil err means the tier could not be processed and
// the target must be abandoned.
func (e *Engine) rotateTier(
	ctx context.Context,
	log logger.Logger,
	t target.Target,
	dir string,
	period retention.Period,
) (promoted, deleted int, errs []error, err error) {
	artifacts, err := e.store.List(dir, period.Name)
	if err != nil {
		return 0, 0, nil, err
	}
	next, hasNext := e.policy.Next(period)

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return promoted, deleted, errs, err
		}

		age := e.store.Age(a)
		if age <= period.MaxAge {
			// Everything after a is younger still.
			break
		}

		if !hasNext {
			if err := e.delete(ctx, log, t, a, age, "end of retention"); err != nil {
				errs = append(errs, err)
				continue
			}
			deleted++
			continue
		}

		window := next.Window(a.ModTime)
		taken, err := e.store.HasArtifactInWindow(dir, next.Name, window)
		if err != nil {
			return promoted, deleted, errs, err
		}
		if taken {
			if err := e.delete(ctx, log, t, a, age, window.String()+" already kept in "+next.Name); err != nil {
				errs = append(errs, err)
				continue
			}
			deleted++
			continue
		}

		moved, err := e.store.Promote(ctx, a, next.Name)
		if err != nil {
			log.Error("artifact promotion failed", "path", a.Path, "error", err.Error())
			errs = append(errs, &ArtifactError{Target: t, Op: "promote", Path: a.Path, Err: err})
			continue
		}
		promoted++
		log.Info("artifact promoted",
			"artifact", a.Name,
			"from", period.Name,
			"to", next.Name,
			"window", window.String(),
			"age", age.String(),
			"path", moved.Path,
		)
	}
	return promoted, deleted, errs, nil
}

func (e *Engine) delete(
	ctx context.Context,
	log logger.Logger,
	t target.Target,
	a store.Artifact,
	age time.Duration,
	reason string,
) error {
	if err := e.store.Delete(ctx, a); err != nil {
		log.Error("artifact deletion failed", "path", a.Path, "error", err.Error())
		return &ArtifactError{Target: t, Op: "delete", Path: a.Path, Err: err}
	}
	log.Info("artifact deleted",
		"artifact", a.Name,
		"period", a.Period,
		"age", age.String(),
		"reason", reason,
	)
	return nil
}
