package target

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/kebairia/bacli/internal/config"
)

// Kind is the directory a target's artifacts live under on a host.
type Kind string

const (
	Database  Kind = "databases"
	FileGroup Kind = "files"
)

// Target identifies one unit of backup: a database or a file group on a host.
type Target struct {
	Host string
	Kind Kind
	Name string
}

func (t Target) String() string {
	return t.Host + "/" + string(t.Kind) + "/" + t.Name
}

// Dir returns the target directory below the backup root.
func (t Target) Dir(root string) string {
	return filepath.Join(root, t.Host, string(t.Kind), t.Name)
}

// Declared lists every target named by the configuration, in declaration
// order: per host, databases first, then file groups.
func Declared(cfg *config.Config) []Target {
	var targets []Target
	for _, h := range cfg.Hosts {
		for _, db := range h.Databases {
			targets = append(targets, Target{Host: h.Name, Kind: Database, Name: db})
		}
		for _, fg := range h.FileGroups {
			targets = append(targets, Target{Host: h.Name, Kind: FileGroup, Name: fg.Name})
		}
	}
	return targets
}

// Enumerator cross-references declared targets with what exists on disk.
type Enumerator struct {
	root     string
	declared []Target
}

func NewEnumerator(cfg *config.Config) *Enumerator {
	return &Enumerator{root: cfg.BackupDir, declared: Declared(cfg)}
}

// Root returns the backup root directory.
func (e *Enumerator) Root() string { return e.root }

// Declared returns the configured targets, whether or not they exist.
func (e *Enumerator) Declared() []Target {
	return append([]Target(nil), e.declared...)
}

// Enumerate returns the declared targets whose directory exists. Targets
// without a directory have simply not been backed up yet and are skipped.
// A path that exists but cannot be used is reported in the returned error,
// alongside the usable targets.
func (e *Enumerator) Enumerate() ([]Target, error) {
	var (
		found []Target
		errs  error
	)
	for _, t := range e.declared {
		dir := t.Dir(e.root)
		info, err := os.Stat(dir)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("%w: target %s: %v", config.ErrConfigurationMissing, t, err))
			continue
		case !info.IsDir():
			errs = multierr.Append(errs, fmt.Errorf("%w: target %s: %s is not a directory", config.ErrConfigurationMissing, t, dir))
			continue
		}
		found = append(found, t)
	}
	return found, errs
}
