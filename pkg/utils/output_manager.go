package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ArtifactPrefix is the fixed stem shared by every artifact of a run.
const ArtifactPrefix = "municipios_cbp_establishments"

// OutputManager handles output file organization and path management
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	if baseOutputDir == "" {
		baseOutputDir = "."
	}
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// ArtifactName encodes the configured start year and the last year that
// returned data, e.g. municipios_cbp_establishments_2010_2023_wide.json.
func (om *OutputManager) ArtifactName(startYear, lastYear int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s_%d_%d_wide.%s", ArtifactPrefix, startYear, lastYear, ext)
}

// ArtifactPath returns the full path for an artifact, creating the output
// directory when needed.
func (om *OutputManager) ArtifactPath(startYear, lastYear int, ext string) (string, error) {
	if err := om.EnsureOutputDirExists(); err != nil {
		return "", err
	}
	return filepath.Join(om.BaseOutputDir, om.ArtifactName(startYear, lastYear, ext)), nil
}

// GetFileSize returns the size of a file in bytes
func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	if err := os.MkdirAll(om.BaseOutputDir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", om.BaseOutputDir)
	}
	return nil
}
