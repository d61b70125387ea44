package operations

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/kebairia/bacli/internal/acquire"
	"github.com/kebairia/bacli/internal/config"
)

// BackupLockCommand is the command name acquisition locks are keyed by.
const BackupLockCommand = "backup"

// BackupResult summarizes a backup run.
type BackupResult struct {
	Targets       int
	FailedTargets int
	Created       []string
	Errors        []error
}

// Err combines every recorded error, or returns nil.
func (r BackupResult) Err() error {
	return multierr.Combine(r.Errors...)
}

// AllFailed reports whether there was work and none of it succeeded.
func (r BackupResult) AllFailed() bool {
	return r.Targets > 0 && r.FailedTargets == r.Targets
}

// BackupTarget acquires one artifact for src while holding the target's
// backup lock.
func (om *OperationManager) BackupTarget(ctx context.Context, acq *acquire.Acquirer, src acquire.Source) (string, error) {
	t := src.Target()
	release, err := om.locker.Acquire(BackupLockCommand, t.String())
	if err != nil {
		return "", err
	}
	defer release()
	return acq.Acquire(ctx, src)
}

// BackupAll acquires a fresh artifact for every declared target, in parallel.
// When host is not empty only that host is backed up.
func (om *OperationManager) BackupAll(ctx context.Context, host string) (BackupResult, error) {
	var res BackupResult

	include := func(h config.HostConfig) bool { return host == "" || h.Name == host }
	declared := 0
	for _, h := range om.cfg.Hosts {
		if include(h) {
			declared += len(h.Databases) + len(h.FileGroups)
		}
	}
	if host != "" && declared == 0 {
		return res, fmt.Errorf("%w: host %q declares no targets", config.ErrConfigurationMissing, host)
	}
	res.Targets = declared

	var creds acquire.CredentialSource
	if om.needsVault(include) {
		c, err := om.credentials(ctx)
		if err != nil {
			res.Errors = append(res.Errors, err)
		} else if c != nil {
			creds = c
		}
	}

	sources, err := acquire.Sources(ctx, om.cfg, creds, include, acquire.WithRunner(om.runner))
	res.Errors = append(res.Errors, multierr.Errors(err)...)

	acq := acquire.NewAcquirer(om.cfg, om.policy.Finest().Name, om.log, acquire.WithClock(om.now))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []string
		errs    = make(chan error, len(sources)) // buffered to avoid deadlock
	)
	for _, src := range sources {
		wg.Add(1)
		go func(src acquire.Source) {
			defer wg.Done()

			path, err := om.BackupTarget(ctx, acq, src)
			if err != nil {
				om.log.Error("backup failed",
					"target", src.Target().String(),
					"error", err.Error(),
				)
				errs <- fmt.Errorf("backup %s: %w", src.Target(), err)
				return
			}
			mu.Lock()
			created = append(created, path)
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		res.Errors = append(res.Errors, err)
	}
	sort.Strings(created)
	res.Created = created
	res.FailedTargets = res.Targets - len(created)

	om.log.Info("backup completed",
		"targets", res.Targets,
		"failed_targets", res.FailedTargets,
		"created", len(res.Created),
	)
	return res, nil
}
