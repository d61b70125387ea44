package acquire

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/target"
	"github.com/kebairia/bacli/internal/vault"
)

// CredentialSource resolves a Vault role path to database credentials.
type CredentialSource interface {
	Credentials(ctx context.Context, path string) (vault.Credentials, error)
}

// Sources builds one Source per declared target of every host accepted by
// include. A host whose credentials cannot be resolved contributes no
// database sources; its error is aggregated and the remaining hosts are
// still returned.
func Sources(
	ctx context.Context,
	cfg *config.Config,
	creds CredentialSource,
	include func(config.HostConfig) bool,
	opts ...Option,
) ([]Source, error) {
	var (
		sources []Source
		errs    error
	)
	for _, host := range cfg.Hosts {
		if include != nil && !include(host) {
			continue
		}
		remote := Remote{Address: host.Address, User: host.SSHUser, Port: host.SSHPort}

		if len(host.Databases) > 0 {
			dbOpts, err := hostCredentials(ctx, host, creds)
			if err != nil {
				errs = multierr.Append(errs, err)
			} else {
				dbOpts = append(dbOpts, opts...)
				for _, db := range host.Databases {
					t := target.Target{Host: host.Name, Kind: target.Database, Name: db}
					switch host.Engine {
					case config.EnginePostgres:
						sources = append(sources, NewPostgres(t, remote, dbOpts...))
					default:
						sources = append(sources, NewMySQL(t, remote, dbOpts...))
					}
				}
			}
		}

		for _, group := range host.FileGroups {
			t := target.Target{Host: host.Name, Kind: target.FileGroup, Name: group.Name}
			sources = append(sources, NewFileGroup(t, remote, group.Paths, opts...))
		}
	}
	return sources, errs
}

func hostCredentials(ctx context.Context, host config.HostConfig, creds CredentialSource) ([]Option, error) {
	c := host.Credentials
	if c.VaultRole == "" {
		return []Option{WithCredentials(c.Username, c.Password)}, nil
	}
	if creds == nil {
		return nil, fmt.Errorf("%w: host %s: vault_role set but vault is not configured",
			config.ErrConfigurationMissing, host.Name)
	}
	secret, err := creds.Credentials(ctx, c.VaultRole)
	if err != nil {
		return nil, fmt.Errorf("host %s: vault read: %w", host.Name, err)
	}
	return []Option{WithCredentials(secret.Username, secret.Password)}, nil
}
