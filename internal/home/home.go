package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the pagecast home directory.
	DefaultDirName = ".pagecast"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// DatabaseFileName is the job store database file name.
	DatabaseFileName = "pagecast.db"
)

// Dir represents the pagecast home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.pagecast).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// DatabasePath returns the path to the job store database.
func (d *Dir) DatabasePath() string {
	return filepath.Join(d.path, DatabaseFileName)
}

// IncomingDir returns the directory where uploaded source documents land.
func (d *Dir) IncomingDir() string {
	return filepath.Join(d.path, "incoming")
}

// IncomingPath returns the path for an uploaded source document.
func (d *Dir) IncomingPath(jobID, filename string) string {
	return filepath.Join(d.IncomingDir(), jobID+"_"+filepath.Base(filename))
}

// WorkDir returns the per-job scratch directory root (rendered pages).
func (d *Dir) WorkDir() string {
	return filepath.Join(d.path, "work")
}

// JobPagesDir returns the rendered page image directory for a job.
func (d *Dir) JobPagesDir(jobID string) string {
	return filepath.Join(d.WorkDir(), jobID, "pages")
}

// EpubsDir returns the directory for finished archives.
func (d *Dir) EpubsDir() string {
	return filepath.Join(d.path, "epubs")
}

// EpubPath returns the output archive path for a job.
func (d *Dir) EpubPath(jobID string) string {
	return filepath.Join(d.EpubsDir(), jobID+".epub")
}

// EnsureExists creates the home directory and subdirectories if they don't
// exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.IncomingDir(), d.WorkDir(), d.EpubsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// CleanJobWork removes a job's scratch directory.
func (d *Dir) CleanJobWork(jobID string) error {
	if jobID == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(d.WorkDir(), jobID))
}
