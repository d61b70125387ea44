package acquire

import (
	"context"
	"fmt"
	"io"

	"github.com/kebairia/bacli/internal/target"
)

// Postgres dumps one database as plain SQL with pg_dump on the remote host.
type Postgres struct {
	base
}

func NewPostgres(t target.Target, remote Remote, opts ...Option) *Postgres {
	return &Postgres{base: newBase(t, remote, opts)}
}

func (p *Postgres) Extension() string { return "sql.gz" }

func (p *Postgres) Dump(ctx context.Context, w io.Writer) error {
	argv := []string{"pg_dump", "--no-password", "--format=plain"}
	if p.username != "" {
		argv = append(argv, "-U", p.username)
	}
	argv = append(argv, p.target.Name)

	var env []string
	// Pass PGPASSWORD for non-interactive auth
	if p.password != "" {
		env = append(env, "PGPASSWORD="+p.password)
	}
	if err := p.runRemote(ctx, w, env, argv...); err != nil {
		return fmt.Errorf("pg_dump failed: %w", err)
	}
	return nil
}
