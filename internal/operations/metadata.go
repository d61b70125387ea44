package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kebairia/bacli/internal/report"
)

// MetadataDir holds the last report of each command, below the backup root.
const MetadataDir = ".bacli"

// ReportPath returns where the last report for command is stored.
func (om *OperationManager) ReportPath(command string) string {
	return filepath.Join(om.cfg.BackupDir, MetadataDir, command+".json")
}

// SaveReport writes r as the last report of its command. The file is
// replaced atomically so monitoring never reads a partial report.
func (om *OperationManager) SaveReport(r *report.RunReport) (string, error) {
	path := om.ReportPath(r.Command)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure metadata directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+r.Command+"-*.json")
	if err != nil {
		return "", fmt.Errorf("create metadata file in %q: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if err := r.Write(tmp); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close metadata file %q: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write metadata file %q: %w", path, err)
	}
	return path, nil
}

// LoadReport reads the last report written for command.
func (om *OperationManager) LoadReport(command string) (*report.RunReport, error) {
	path := om.ReportPath(command)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open metadata file %q: %w", path, err)
	}
	defer f.Close()

	var r report.RunReport
	if err := json.NewDecoder(f).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode metadata JSON: %w", err)
	}
	return &r, nil
}
