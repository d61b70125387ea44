package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/logger"
)

// AcquirerOption configures an Acquirer.
type AcquirerOption func(*Acquirer)

// WithClock overrides the time source used for artifact timestamps.
func WithClock(now func() time.Time) AcquirerOption {
	return func(a *Acquirer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithTimeout bounds a single acquisition.
func WithTimeout(d time.Duration) AcquirerOption {
	return func(a *Acquirer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// Acquirer writes fresh artifacts into the finest retention tier.
type Acquirer struct {
	root            string
	period          string
	timestampFormat string
	timeout         time.Duration
	now             func() time.Time
	log             logger.Logger
}

// NewAcquirer stores artifacts below cfg.BackupDir in the given tier.
func NewAcquirer(cfg *config.Config, period string, log logger.Logger, opts ...AcquirerOption) *Acquirer {
	a := &Acquirer{
		root:            cfg.BackupDir,
		period:          period,
		timestampFormat: cfg.Backup.TimestampFormat,
		timeout:         cfg.Backup.Timeout,
		now:             time.Now,
		log:             log,
	}
	if a.timestampFormat == "" {
		a.timestampFormat = config.DefaultTimestampFormat
	}
	if a.timeout <= 0 {
		a.timeout = config.DefaultTimeout
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire dumps src into <target>/<period>/<name>.<timestamp>.<ext> and
// returns the artifact path. The dump is written to a hidden partial file
// first so a failed run never leaves a truncated artifact in the tier.
func (a *Acquirer) Acquire(ctx context.Context, src Source) (path string, err error) {
	t := src.Target()
	log := a.log.With("target", t.String())

	dir := filepath.Join(t.Dir(a.root), a.period)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrBackupFailed, dir, err)
	}

	start := a.now()
	name := fmt.Sprintf("%s.%s.%s", t.Name, start.Format(a.timestampFormat), src.Extension())
	final := filepath.Join(dir, name)
	partial := filepath.Join(dir, "."+name+".partial")

	ctx, cancel := context.WithTimeoutCause(ctx, a.timeout, ErrTimeout)
	defer cancel()

	log.Info("backup started", "path", final)

	f, err := os.Create(partial)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrBackupFailed, partial, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(partial)
		}
	}()

	gz, err := compressTo(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	if err := src.Dump(ctx, gz); err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrTimeout) {
			return "", fmt.Errorf("%w: %s: %w", ErrBackupFailed, t, cause)
		}
		return "", fmt.Errorf("%w: %s: %w", ErrBackupFailed, t, err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("%w: compress %s: %v", ErrBackupFailed, t, err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("%w: sync %s: %v", ErrBackupFailed, partial, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %v", ErrBackupFailed, partial, err)
	}
	if err := os.Rename(partial, final); err != nil {
		_ = os.Remove(partial)
		return "", fmt.Errorf("%w: rename %s: %v", ErrBackupFailed, partial, err)
	}

	var size int64
	if info, err := os.Stat(final); err == nil {
		size = info.Size()
	}
	log.Info("backup completed",
		"path", final,
		"size_bytes", size,
		"duration", a.now().Sub(start).String(),
	)
	return final, nil
}
