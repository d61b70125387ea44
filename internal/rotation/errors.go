package rotation

import (
	"fmt"

	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/store"
	"github.com/kebairia/bacli/internal/target"
)

// Error kinds surfaced by a rotation run. Match them with errors.Is.
var (
	ErrConfigurationMissing = config.ErrConfigurationMissing
	ErrDirectoryUnavailable = store.ErrDirectoryUnavailable
	ErrArtifactMoveFailed   = store.ErrArtifactMoveFailed
	ErrArtifactDeleteFailed = store.ErrArtifactDeleteFailed
)

// TargetError aborted the rotation of a whole target.
type TargetError struct {
	Target target.Target
	Err    error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("rotate %s: %v", e.Target, e.Err)
}

func (e *TargetError) Unwrap() error { return e.Err }

// ArtifactError is a failure to promote or delete a single artifact. Rotation
// of the target carries on with the next artifact.
type ArtifactError struct {
	Target target.Target
	Op     string // "promote" or "delete"
	Path   string
	Err    error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Path, e.Target, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }
