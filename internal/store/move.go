package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// move renames src to dst, retrying transient errors. When the two paths are
// on different filesystems the file is copied, its modification time restored
// and the source removed.
func move(ctx context.Context, src, dst string, mtime time.Time) error {
	err := retry(ctx, "rename", func() error {
		return os.Rename(src, dst)
	})
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := retry(ctx, "copy", func() error { return copyOnce(src, dst) }); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("restore mtime: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func copyOnce(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

const (
	retryAttempts = 5
	retryInterval = 100 * time.Millisecond
)

// retry runs fn until it succeeds, fails with a non-transient error or the
// attempts run out. Waits double after every transient failure.
func retry(ctx context.Context, opName string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, retryAttempts-1), ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := fn()
		if err != nil && !isTransient(err) {
			return backoff.Permanent(fmt.Errorf("%s failed permanently: %w", opName, err))
		}
		return err
	}, policy)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isTransient(err):
		return fmt.Errorf("%s failed after %d attempts: %w", opName, attempts, err)
	default:
		return err
	}
}

func isTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETIMEDOUT)
}
