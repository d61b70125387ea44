package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
backup_dir: "/srv/backups"
hosts:
  - name: web1
    databases: [shop, blog]
    file_groups:
      - name: etc
        paths: [/etc]
`)
	var cfg Config
	require.NoError(t, cfg.Load(path))

	assert.Equal(t, "/srv/backups", cfg.BackupDir)
	assert.Equal(t, "/srv/backups/.locks", cfg.LockDir)
	assert.Equal(t, DefaultTimestampFormat, cfg.Backup.TimestampFormat)
	assert.Equal(t, DefaultTimeout, cfg.Backup.Timeout)
	assert.Equal(t, 14*24*time.Hour, cfg.Retention.Daily.MaxAge)
	assert.Equal(t, 5, cfg.Retention.Weekly.Keep)
	assert.Equal(t, 4*365*24*time.Hour, cfg.Retention.Yearly.MaxAge)

	require.Len(t, cfg.Hosts, 1)
	h := cfg.Hosts[0]
	assert.Equal(t, "web1", h.Address)
	assert.Equal(t, EngineMySQL, h.Engine)
	assert.Equal(t, []string{"shop", "blog"}, h.Databases)
	assert.Equal(t, []FileGroup{{Name: "etc", Paths: []string{"/etc"}}}, h.FileGroups)
}

func TestLoadConfig_ParsesJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "backup_dir": "/data",
  "backup": {"timeout": "30m"},
  "retention": {"daily": {"max_age": "48h", "keep": 2}},
  "hosts": [{"name": "db1", "engine": "postgres", "databases": ["app"]}]
}`)
	var cfg Config
	require.NoError(t, cfg.Load(path))

	assert.Equal(t, 30*time.Minute, cfg.Backup.Timeout)
	assert.Equal(t, 48*time.Hour, cfg.Retention.Daily.MaxAge)
	assert.Equal(t, 2, cfg.Retention.Daily.Keep)
	assert.Equal(t, 5*7*24*time.Hour, cfg.Retention.Weekly.MaxAge)
	assert.Equal(t, EnginePostgres, cfg.Hosts[0].Engine)
}

func TestLoadConfig_NumericMaxAgeIsSeconds(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
backup_dir: /b
backup:
  timeout: 1800
retention:
  daily:   {max_age: 1209600}
  weekly:  {max_age: 3024000}
  monthly: {max_age: 31449600}
  yearly:  {max_age: 126144000}
`)
	var cfg Config
	require.NoError(t, cfg.Load(path))

	assert.Equal(t, 14*24*time.Hour, cfg.Retention.Daily.MaxAge)
	assert.Equal(t, 5*7*24*time.Hour, cfg.Retention.Weekly.MaxAge)
	assert.Equal(t, 13*28*24*time.Hour, cfg.Retention.Monthly.MaxAge)
	assert.Equal(t, 4*365*24*time.Hour, cfg.Retention.Yearly.MaxAge)
	assert.Equal(t, 30*time.Minute, cfg.Backup.Timeout)

	path = writeConfig(t, "config.json", `{
  "backup_dir": "/b",
  "retention": {"daily": {"max_age": 1209600}}
}`)
	cfg = Config{}
	require.NoError(t, cfg.Load(path))
	assert.Equal(t, 14*24*time.Hour, cfg.Retention.Daily.MaxAge)
	// Unset tiers keep their defaults.
	assert.Equal(t, 5*7*24*time.Hour, cfg.Retention.Weekly.MaxAge)
}

func TestLoadConfig_MergesIncludes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hosts.yaml"), []byte(`
hosts:
  - name: files1
    file_groups:
      - name: www
        paths: [/var/www]
`), 0o600))
	base := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(base, []byte(`
include: [hosts.yaml]
backup_dir: /backups
`), 0o600))

	var cfg Config
	require.NoError(t, cfg.Load(base))
	require.Len(t, cfg.Hosts, 1)
	assert.Equal(t, "files1", cfg.Hosts[0].Name)
}

func TestLoadConfig_EnvOverridesBackupDir(t *testing.T) {
	t.Setenv("BACLI_BACKUP_DIR", "/from/env")
	path := writeConfig(t, "config.yaml", "backup_dir: /from/file\n")

	var cfg Config
	require.NoError(t, cfg.Load(path))
	assert.Equal(t, "/from/env", cfg.BackupDir)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{
			name:    "missing backup dir",
			content: "hosts: []\n",
			want:    ErrConfigurationMissing,
		},
		{
			name:    "host without name",
			content: "backup_dir: /b\nhosts:\n  - databases: [a]\n",
			want:    ErrConfigurationMissing,
		},
		{
			name:    "file group without paths",
			content: "backup_dir: /b\nhosts:\n  - name: h\n    file_groups:\n      - name: etc\n",
			want:    ErrConfigurationMissing,
		},
		{
			name:    "duplicate host",
			content: "backup_dir: /b\nhosts:\n  - name: h\n  - name: h\n",
			want:    ErrValidateConfig,
		},
		{
			name:    "unknown engine",
			content: "backup_dir: /b\nhosts:\n  - name: h\n    engine: oracle\n",
			want:    ErrValidateConfig,
		},
		{
			name:    "thresholds out of order",
			content: "backup_dir: /b\nretention:\n  weekly:\n    max_age: 24h\n",
			want:    ErrValidateConfig,
		},
		{
			name:    "path traversal in database name",
			content: "backup_dir: /b\nhosts:\n  - name: h\n    databases: [\"../x\"]\n",
			want:    ErrValidateConfig,
		},
		{
			name:    "max_age below minimum",
			content: "backup_dir: /b\nretention:\n  daily:\n    max_age: 30m\n",
			want:    ErrValidateConfig,
		},
		{
			name:    "max_age in seconds below minimum",
			content: "backup_dir: /b\nretention:\n  daily:\n    max_age: 60\n",
			want:    ErrValidateConfig,
		},
		{
			name:    "bad cron expression",
			content: "backup_dir: /b\nschedule:\n  rotate: \"every day\"\n",
			want:    ErrValidateConfig,
		},
		{
			name:    "unknown key",
			content: "backup_dir: /b\nbogus: 1\n",
			want:    ErrLoadConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.yaml", tt.content)
			var cfg Config
			err := cfg.Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	var cfg Config
	err := cfg.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrLoadConfig)
}
