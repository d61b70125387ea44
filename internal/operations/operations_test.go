package operations

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/lock"
	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/report"
	"github.com/kebairia/bacli/internal/retention"
	"github.com/kebairia/bacli/internal/target"
	"github.com/kebairia/bacli/internal/vault"
)

var now = time.Date(2024, time.October, 5, 12, 0, 0, 0, time.Local)

// scriptRunner answers every remote command with its script, and fails for
// scripts mentioning fail.
type scriptRunner struct{}

func (scriptRunner) Run(_ context.Context, stdin io.Reader, stdout io.Writer, _ string, _ ...string) error {
	script, err := io.ReadAll(stdin)
	if err != nil {
		return err
	}
	if strings.Contains(string(script), "fail") {
		return errors.New("exit status 1")
	}
	_, err = stdout.Write(script)
	return err
}

type staticCreds struct{}

func (staticCreds) Credentials(context.Context, string) (vault.Credentials, error) {
	return vault.Credentials{Username: "v", Password: "p"}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	d := retention.DefaultPolicy().Sequence()
	return &config.Config{
		BackupDir: root,
		LockDir:   filepath.Join(root, ".locks"),
		Backup:    config.BackupConfig{TimestampFormat: config.DefaultTimestampFormat, Timeout: time.Minute},
		Retention: config.RetentionConfig{
			Daily:   config.PeriodConfig{MaxAge: d[0].MaxAge, Keep: d[0].Keep},
			Weekly:  config.PeriodConfig{MaxAge: d[1].MaxAge, Keep: d[1].Keep},
			Monthly: config.PeriodConfig{MaxAge: d[2].MaxAge, Keep: d[2].Keep},
			Yearly:  config.PeriodConfig{MaxAge: d[3].MaxAge, Keep: d[3].Keep},
		},
		Hosts: []config.HostConfig{
			{
				Name:        "host1",
				Address:     "host1",
				Engine:      config.EngineMySQL,
				Credentials: config.Credentials{VaultRole: "database/creds/backup"},
				Databases:   []string{"db1", "fail"},
			},
			{
				Name:       "host2",
				Address:    "host2",
				Engine:     config.EngineMySQL,
				FileGroups: []config.FileGroup{{Name: "www", Paths: []string{"/var/www"}}},
			},
		},
	}
}

func newManager(t *testing.T, cfg *config.Config) *OperationManager {
	t.Helper()
	om, err := NewOperationManager(cfg, logger.Nop(),
		WithRunner(scriptRunner{}),
		WithCredentialSource(staticCreds{}),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return om
}

func TestBackupAll(t *testing.T) {
	cfg := testConfig(t)
	om := newManager(t, cfg)

	res, err := om.BackupAll(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Targets)
	assert.Equal(t, 1, res.FailedTargets)
	assert.False(t, res.AllFailed())
	require.Len(t, res.Errors, 1)
	assert.ErrorContains(t, res.Errors[0], "host1/databases/fail")

	stamp := now.Format(config.DefaultTimestampFormat)
	assert.Equal(t, []string{
		filepath.Join(cfg.BackupDir, "host1", "databases", "db1", "daily", "db1."+stamp+".sql.gz"),
		filepath.Join(cfg.BackupDir, "host2", "files", "www", "daily", "www."+stamp+".tar.gz"),
	}, res.Created)
	for _, p := range res.Created {
		assert.FileExists(t, p)
	}
}

func TestBackupAllSingleHost(t *testing.T) {
	om := newManager(t, testConfig(t))

	res, err := om.BackupAll(context.Background(), "host2")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Targets)
	assert.Len(t, res.Created, 1)
	assert.Empty(t, res.Errors)

	_, err = om.BackupAll(context.Background(), "nope")
	assert.ErrorIs(t, err, config.ErrConfigurationMissing)
}

func TestBackupSkipsLockedTarget(t *testing.T) {
	cfg := testConfig(t)
	om := newManager(t, cfg)

	release, err := lock.New(cfg.LockDir).Acquire(BackupLockCommand, "host2/files/www")
	require.NoError(t, err)
	defer release()

	res, err := om.BackupAll(context.Background(), "host2")
	require.NoError(t, err)
	assert.True(t, res.AllFailed())
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], lock.ErrLocked)
}

func TestRotate(t *testing.T) {
	cfg := testConfig(t)
	om := newManager(t, cfg)

	db1 := target.Target{Host: "host1", Kind: target.Database, Name: "db1"}
	dir := filepath.Join(db1.Dir(cfg.BackupDir), retention.Daily)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	old := filepath.Join(dir, "db1.old.sql.gz")
	require.NoError(t, os.WriteFile(old, nil, 0o644))
	mtime := now.Add(-15 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, mtime, mtime))

	// A declared target whose directory is a file cannot be rotated.
	www := target.Target{Host: "host2", Kind: target.FileGroup, Name: "www"}
	require.NoError(t, os.MkdirAll(filepath.Dir(www.Dir(cfg.BackupDir)), 0o755))
	require.NoError(t, os.WriteFile(www.Dir(cfg.BackupDir), nil, 0o644))

	res := om.Rotate(context.Background())
	assert.Equal(t, 2, res.Targets)
	assert.Equal(t, 1, res.FailedTargets)
	assert.Equal(t, 1, res.Promoted)
	assert.False(t, res.AllFailed())
	assert.FileExists(t, filepath.Join(db1.Dir(cfg.BackupDir), retention.Weekly, "db1.old.sql.gz"))
}

func TestListAges(t *testing.T) {
	cfg := testConfig(t)
	om := newManager(t, cfg)

	_, err := om.BackupAll(context.Background(), "host2")
	require.NoError(t, err)

	ages, err := om.ListAges()
	require.NoError(t, err)
	require.Len(t, ages, 3)
	assert.False(t, ages[0].Known)
	assert.False(t, ages[1].Known)
	assert.True(t, ages[2].Known)
	assert.Equal(t, "host2/files/www", ages[2].Target.String())
}

func TestSaveReport(t *testing.T) {
	cfg := testConfig(t)
	om := newManager(t, cfg)

	r := report.NewRunReport("rotate", now)
	r.Promoted = 3
	r.Finish(now.Add(time.Second), 2, 0, nil)

	path, err := om.SaveReport(r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.BackupDir, ".bacli", "rotate.json"), path)

	got, err := om.LoadReport("rotate")
	require.NoError(t, err)
	assert.Equal(t, report.StatusSuccess, got.Status)
	assert.Equal(t, 3, got.Promoted)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = om.LoadReport("backup")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
