package acquire

import (
	"context"
	"fmt"
	"io"

	"github.com/kebairia/bacli/internal/target"
)

// FileGroup archives a set of remote paths with tar.
type FileGroup struct {
	base
	paths []string
}

func NewFileGroup(t target.Target, remote Remote, paths []string, opts ...Option) *FileGroup {
	return &FileGroup{base: newBase(t, remote, opts), paths: append([]string(nil), paths...)}
}

func (f *FileGroup) Extension() string { return "tar.gz" }

func (f *FileGroup) Dump(ctx context.Context, w io.Writer) error {
	argv := append([]string{"tar", "-cf", "-"}, f.paths...)
	if err := f.runRemote(ctx, w, nil, argv...); err != nil {
		return fmt.Errorf("tar failed: %w", err)
	}
	return nil
}
