// Package store implements the filesystem-backed artifact store. Artifacts of a
// target live in one directory per retention period:
//
//	<target dir>/<period>/<artifact file>
//
// The directory listing is the only state; there is no index.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kebairia/bacli/internal/retention"
)

var (
	// ErrDirectoryUnavailable indicates a period directory cannot be created or read.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	// ErrArtifactMoveFailed indicates an artifact could not be moved between periods.
	ErrArtifactMoveFailed = errors.New("artifact move failed")
	// ErrArtifactDeleteFailed indicates an existing artifact could not be removed.
	ErrArtifactDeleteFailed = errors.New("artifact delete failed")
)

// Artifact is a single backup file in one period directory.
type Artifact struct {
	Path    string
	Name    string
	Period  string
	Size    int64
	ModTime time.Time
}

// TargetDir returns the target directory holding the artifact's period directory.
func (a Artifact) TargetDir() string {
	return filepath.Dir(filepath.Dir(a.Path))
}

type Option func(*Store)

// WithClock overrides the time source used for ages.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store gives access to the artifacts of any target directory.
type Store struct {
	periods []string
	now     func() time.Time
}

func New(policy *retention.Policy, opts ...Option) *Store {
	s := &Store{
		periods: policy.Names(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}


// List returns the artifacts of one period directory, oldest first by
// modification time. A missing directory is empty, not an error. Hidden files
// (in-flight acquisitions, lock files) and subdirectories are ignored.
func (s *Store) List(targetDir, period string) ([]Artifact, error) {
	dir := filepath.Join(targetDir, period)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrDirectoryUnavailable, dir, err)
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, ent := range entries {
		name := ent.Name()
		if strings.HasPrefix(name, ".") || !ent.Type().IsRegular() {
			continue
		}
		info, err := ent.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// removed since ReadDir
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %w", ErrDirectoryUnavailable, filepath.Join(dir, name), err)
		}
		artifacts = append(artifacts, Artifact{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Period:  period,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// Oldest first; names break ties so the order is stable across runs.
	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].ModTime.Equal(artifacts[j].ModTime) {
			return artifacts[i].ModTime.Before(artifacts[j].ModTime)
		}
		return artifacts[i].Name < artifacts[j].Name
	})
	return artifacts, nil
}

// Age is the time elapsed since the artifact was last modified.
func (s *Store) Age(a Artifact) time.Duration {
	return s.now().Sub(a.ModTime)
}

// EnsurePeriodDirs creates every period directory of a target. It is
// idempotent.
func (s *Store) EnsurePeriodDirs(targetDir string) error {
	for _, period := range s.periods {
		dir := filepath.Join(targetDir, period)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %w", ErrDirectoryUnavailable, dir, err)
		}
	}
	return nil
}

// Promote moves an artifact into another period directory of the same target,
// keeping its name and modification time. Moves across filesystems fall back
// to copy and remove and are not atomic.
func (s *Store) Promote(ctx context.Context, a Artifact, to string) (Artifact, error) {
	dst := filepath.Join(a.TargetDir(), to, a.Name)
	if err := move(ctx, a.Path, dst, a.ModTime); err != nil {
		return Artifact{}, fmt.Errorf("%w: %s -> %s: %w", ErrArtifactMoveFailed, a.Path, dst, err)
	}
	moved := a
	moved.Path = dst
	moved.Period = to
	return moved, nil
}

// Delete removes an artifact. An artifact that is already gone is not an error.
func (s *Store) Delete(ctx context.Context, a Artifact) error {
	err := retry(ctx, "remove", func() error {
		err := os.Remove(a.Path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrArtifactDeleteFailed, a.Path, err)
	}
	return nil
}

// HasArtifactInWindow reports whether the period directory already holds an
// artifact whose modification time falls in w.
func (s *Store) HasArtifactInWindow(targetDir, period string, w retention.Window) (bool, error) {
	artifacts, err := s.List(targetDir, period)
	if err != nil {
		return false, err
	}
	for _, a := range artifacts {
		if w.Contains(a.ModTime) {
			return true, nil
		}
	}
	return false, nil
}

// Latest returns the most recently modified artifact of a period directory.
func (s *Store) Latest(targetDir, period string) (Artifact, bool, error) {
	artifacts, err := s.List(targetDir, period)
	if err != nil || len(artifacts) == 0 {
		return Artifact{}, false, err
	}
	return artifacts[len(artifacts)-1], true, nil
}
