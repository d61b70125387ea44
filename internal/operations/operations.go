// Package operations ties configuration, storage and the retention engine
// together into the commands bacli exposes.
package operations

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kebairia/bacli/internal/acquire"
	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/lock"
	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/report"
	"github.com/kebairia/bacli/internal/retention"
	"github.com/kebairia/bacli/internal/rotation"
	"github.com/kebairia/bacli/internal/store"
	"github.com/kebairia/bacli/internal/target"
	"github.com/kebairia/bacli/internal/vault"
)

type Option func(*OperationManager)

// WithCredentialSource replaces the Vault client used for vault_role lookups.
func WithCredentialSource(c acquire.CredentialSource) Option {
	return func(om *OperationManager) {
		om.creds = c
	}
}

// WithRunner replaces the command runner used by acquisition sources.
func WithRunner(r acquire.Runner) Option {
	return func(om *OperationManager) {
		om.runner = r
	}
}

// WithClock overrides the time source for artifact ages and timestamps.
func WithClock(now func() time.Time) Option {
	return func(om *OperationManager) {
		if now != nil {
			om.now = now
		}
	}
}

// OperationManager manages the backup, rotate and ages operations.
type OperationManager struct {
	cfg    *config.Config
	log    logger.Logger
	policy *retention.Policy
	store  *store.Store
	locker *lock.Locker
	runner acquire.Runner
	now    func() time.Time

	credsOnce sync.Once
	creds     acquire.CredentialSource
	credsErr  error
}

// NewOperationManager builds the retention policy and store for cfg.
func NewOperationManager(cfg *config.Config, log logger.Logger, opts ...Option) (*OperationManager, error) {
	om := &OperationManager{
		cfg:    cfg,
		log:    log,
		locker: lock.New(cfg.LockDir),
		runner: acquire.ExecRunner{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(om)
	}
	policy, err := retention.FromConfig(cfg.Retention)
	if err != nil {
		return nil, err
	}
	om.policy = policy
	om.store = store.New(policy, store.WithClock(om.now))
	return om, nil
}

// credentials returns the Vault client, logging in on first use. Rotation
// and age reporting never need it, so it is not created up front.
func (om *OperationManager) credentials(ctx context.Context) (acquire.CredentialSource, error) {
	om.credsOnce.Do(func() {
		if om.creds != nil {
			return
		}
		if om.cfg.Vault.Address == "" && os.Getenv("VAULT_ADDR") == "" {
			return
		}
		client, err := vault.NewClient(ctx,
			vault.WithAddress(om.cfg.Vault.Address),
			vault.WithAppRole(om.cfg.Vault.RoleID, om.cfg.Vault.RoleName),
		)
		if err != nil {
			om.credsErr = fmt.Errorf("vault client init: %w", err)
			return
		}
		om.creds = client
	})
	return om.creds, om.credsErr
}

func (om *OperationManager) needsVault(include func(config.HostConfig) bool) bool {
	for _, h := range om.cfg.Hosts {
		if include(h) && h.Credentials.VaultRole != "" && len(h.Databases) > 0 {
			return true
		}
	}
	return false
}

// Engine returns a rotation engine that locks each target it rotates.
func (om *OperationManager) Engine() *rotation.Engine {
	return rotation.NewEngine(om.cfg.BackupDir, om.policy, om.store, om.log, rotation.WithLocker(om.locker))
}

// Enumerator returns the target enumerator for the configured backup root.
func (om *OperationManager) Enumerator() *target.Enumerator {
	return target.NewEnumerator(om.cfg)
}

// AgeReporter returns a reporter over every declared target.
func (om *OperationManager) AgeReporter() *report.AgeReporter {
	e := om.Enumerator()
	return report.NewAgeReporter(e.Root(), e.Declared(), om.store, om.policy.Finest().Name)
}
