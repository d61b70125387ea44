package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/mitchellh/mapstructure"
)

const (
	approleSecretIDPath = "auth/approle/role/%s/secret-id"
	approleLoginPath    = "auth/approle/login"
)

var (
	// ErrClientInit indicates failure to initialize the Vault API client.
	ErrClientInit = errors.New("vault client initialization failed")
	// ErrNoCredentials indicates a secret path returned no usable credentials.
	ErrNoCredentials = errors.New("no credentials at path")
)

type Option func(*config)

type config struct {
	address  string
	token    string
	roleID   string
	roleName string
}

// Client reads database credentials from Vault.
type Client struct {
	api    *vault.Client
	config *config
}

// Credentials are a username/password pair leased from a secrets engine.
type Credentials struct {
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	TTL      time.Duration
}

func WithAddress(address string) Option {
	return func(c *config) {
		if address != "" {
			c.address = address
		}
	}
}

func WithToken(token string) Option {
	return func(c *config) {
		if token != "" {
			c.token = token
		}
	}
}

func WithAppRole(roleID, roleName string) Option {
	return func(c *config) {
		c.roleID = roleID
		c.roleName = roleName
	}
}

// NewClient connects to Vault. With both role ID and role name set it logs in
// through AppRole; otherwise the token from WithToken or VAULT_TOKEN is used.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &config{
		address: os.Getenv("VAULT_ADDR"),
		token:   os.Getenv("VAULT_TOKEN"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiCfg := vault.DefaultConfig()
	if cfg.address != "" {
		apiCfg.Address = cfg.address
	}
	api, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
	}

	client := &Client{api: api, config: cfg}
	if cfg.token != "" {
		client.api.SetToken(cfg.token)
	}
	if cfg.roleID != "" && cfg.roleName != "" {
		if err := client.loginAppRole(ctx); err != nil {
			return nil, fmt.Errorf("%w: approle login: %v", ErrClientInit, err)
		}
	}
	return client, nil
}

// loginAppRole mints a secret_id for the configured role, exchanges it with
// the role_id for a client token and switches the client to that token.
func (c *Client) loginAppRole(ctx context.Context) error {
	logical := c.api.Logical()

	secretIDPath := fmt.Sprintf(approleSecretIDPath, c.config.roleName)
	minted, err := logical.WriteWithContext(ctx, secretIDPath, nil)
	if err != nil {
		return fmt.Errorf("write %s: %w", secretIDPath, err)
	}
	var secretID string
	if minted != nil {
		secretID, _ = minted.Data["secret_id"].(string)
	}
	if secretID == "" {
		return fmt.Errorf("%s returned no secret_id", secretIDPath)
	}

	auth, err := logical.WriteWithContext(ctx, approleLoginPath, map[string]any{
		"role_id":   c.config.roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", approleLoginPath, err)
	}
	if auth == nil || auth.Auth == nil || auth.Auth.ClientToken == "" {
		return fmt.Errorf("%s returned no client token", approleLoginPath)
	}
	c.api.SetToken(auth.Auth.ClientToken)
	return nil
}

// Credentials reads dynamic credentials from the given role path, e.g.
// "database/creds/backup".
func (c *Client) Credentials(ctx context.Context, path string) (Credentials, error) {
	secret, err := c.api.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read %s: %w", path, err)
	}
	if secret == nil {
		return Credentials{}, fmt.Errorf("%w: %s", ErrNoCredentials, path)
	}
	creds, err := decodeCredentials(secret.Data)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %s: %v", ErrNoCredentials, path, err)
	}
	creds.TTL = time.Duration(secret.LeaseDuration) * time.Second
	return creds, nil
}

func decodeCredentials(data map[string]any) (Credentials, error) {
	var creds Credentials
	if err := mapstructure.Decode(data, &creds); err != nil {
		return Credentials{}, err
	}
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, errors.New("username or password missing")
	}
	return creds, nil
}
