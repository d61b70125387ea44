package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the configuration file.
var ErrLoadConfig = errors.New("config load failed")

// EnvPrefix is the prefix of environment variables overriding file settings,
// e.g. BACLI_BACKUP_DIR.
const EnvPrefix = "BACLI"

// Config represents the top-level configuration file.
type Config struct {
	Include   []string        `mapstructure:"include"    yaml:"include,omitempty"`
	BackupDir string          `mapstructure:"backup_dir" yaml:"backup_dir"`
	LockDir   string          `mapstructure:"lock_dir"   yaml:"lock_dir,omitempty"`
	Backup    BackupConfig    `mapstructure:"backup"     yaml:"backup"`
	Log       LogConfig       `mapstructure:"log"        yaml:"log"`
	Vault     VaultConfig     `mapstructure:"vault"      yaml:"vault"`
	Retention RetentionConfig `mapstructure:"retention"  yaml:"retention"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"   yaml:"schedule"`
	Hosts     []HostConfig    `mapstructure:"hosts"      yaml:"hosts"`
}

// BackupConfig contains global acquisition options.
type BackupConfig struct {
	TimestampFormat string        `mapstructure:"timestamp_format" yaml:"timestamp_format"`
	Timeout         time.Duration `mapstructure:"timeout"          yaml:"timeout"`
}

// LogConfig selects the log level and encoder.
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

// VaultConfig holds connection settings for HashiCorp Vault.
type VaultConfig struct {
	Address  string `mapstructure:"address"   yaml:"address"`
	RoleID   string `mapstructure:"role_id"   yaml:"role_id,omitempty"`
	RoleName string `mapstructure:"role_name" yaml:"role_name,omitempty"`
}

// PeriodConfig is the threshold and advisory keep count of one tier.
type PeriodConfig struct {
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age"`
	Keep   int           `mapstructure:"keep"    yaml:"keep"`
}

// RetentionConfig maps each tier to its settings.
type RetentionConfig struct {
	Daily   PeriodConfig `mapstructure:"daily"   yaml:"daily"`
	Weekly  PeriodConfig `mapstructure:"weekly"  yaml:"weekly"`
	Monthly PeriodConfig `mapstructure:"monthly" yaml:"monthly"`
	Yearly  PeriodConfig `mapstructure:"yearly"  yaml:"yearly"`
}

// ScheduleConfig holds the cron expressions used by the daemon command.
type ScheduleConfig struct {
	Backup string `mapstructure:"backup" yaml:"backup,omitempty"`
	Rotate string `mapstructure:"rotate" yaml:"rotate,omitempty"`
}

// Credentials authenticate the dump tools on a host. When VaultRole is set,
// username and password are fetched from Vault instead.
type Credentials struct {
	Username  string `mapstructure:"username"   yaml:"username,omitempty"`
	Password  string `mapstructure:"password"   yaml:"password,omitempty"`
	VaultRole string `mapstructure:"vault_role" yaml:"vault_role,omitempty"`
}

// FileGroup is a named set of remote paths archived together.
type FileGroup struct {
	Name  string   `mapstructure:"name"  yaml:"name"`
	Paths []string `mapstructure:"paths" yaml:"paths"`
}

// HostConfig declares what is backed up from a single remote host.
type HostConfig struct {
	Name        string      `mapstructure:"name"        yaml:"name"`
	Address     string      `mapstructure:"address"     yaml:"address,omitempty"`
	SSHUser     string      `mapstructure:"ssh_user"    yaml:"ssh_user,omitempty"`
	SSHPort     int         `mapstructure:"ssh_port"    yaml:"ssh_port,omitempty"`
	Engine      string      `mapstructure:"engine"      yaml:"engine,omitempty"`
	Credentials Credentials `mapstructure:"credentials" yaml:"credentials,omitempty"`
	Databases   []string    `mapstructure:"databases"   yaml:"databases,omitempty"`
	FileGroups  []FileGroup `mapstructure:"file_groups" yaml:"file_groups,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backup.timestamp_format", DefaultTimestampFormat)
	v.SetDefault("backup.timeout", DefaultTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("retention.daily.max_age", 14*24*time.Hour)
	v.SetDefault("retention.daily.keep", 14)
	v.SetDefault("retention.weekly.max_age", 5*7*24*time.Hour)
	v.SetDefault("retention.weekly.keep", 5)
	v.SetDefault("retention.monthly.max_age", 13*4*7*24*time.Hour)
	v.SetDefault("retention.monthly.keep", 13)
	v.SetDefault("retention.yearly.max_age", 4*365*24*time.Hour)
	v.SetDefault("retention.yearly.keep", 4)
}

// Load reads the configuration from the given file using Viper, merges any
// included files, unmarshals into the Config struct and validates it.
// YAML and JSON files are both accepted; the format follows the extension.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Read base configuration
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	// Merge include files (if any). Relative paths are resolved against the
	// directory of the base file.
	for _, inc := range v.GetStringSlice("include") {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	if err := v.UnmarshalExact(c, decodeHook()); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}
	// AutomaticEnv only applies to keys viper already knows about, so the
	// top-level directories are bound explicitly.
	if dir := v.GetString("backup_dir"); dir != "" {
		c.BackupDir = dir
	}
	if dir := v.GetString("lock_dir"); dir != "" {
		c.LockDir = dir
	}

	c.applyDefaults()
	return c.Validate()
}

// applyDefaults fills values derived from other settings.
func (c *Config) applyDefaults() {
	if c.LockDir == "" && c.BackupDir != "" {
		c.LockDir = filepath.Join(c.BackupDir, ".locks")
	}
	for i := range c.Hosts {
		h := &c.Hosts[i]
		if h.Address == "" {
			h.Address = h.Name
		}
		if h.Engine == "" {
			h.Engine = EngineMySQL
		}
	}
}
