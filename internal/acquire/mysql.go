package acquire

import (
	"context"
	"fmt"
	"io"

	"github.com/kebairia/bacli/internal/target"
)

// MySQL dumps one database with mysqldump on the remote host.
type MySQL struct {
	base
}

func NewMySQL(t target.Target, remote Remote, opts ...Option) *MySQL {
	return &MySQL{base: newBase(t, remote, opts)}
}

func (m *MySQL) Extension() string { return "sql.gz" }

// Dump runs `mysqldump` in a single transaction so InnoDB tables are
// consistent without locking.
func (m *MySQL) Dump(ctx context.Context, w io.Writer) error {
	argv := []string{
		"mysqldump",
		"--single-transaction",
		"--quick",
		"--routines",
		"--triggers",
	}
	if m.username != "" {
		argv = append(argv, "-u", m.username)
	}
	argv = append(argv, "--databases", m.target.Name)

	var env []string
	// Pass MYSQL_PWD for non-interactive auth
	if m.password != "" {
		env = append(env, "MYSQL_PWD="+m.password)
	}
	if err := m.runRemote(ctx, w, env, argv...); err != nil {
		return fmt.Errorf("mysqldump failed: %w", err)
	}
	return nil
}
