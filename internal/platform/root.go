package platform

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/aretw0/sitecost/pkg/adapters/fs"
)

// ErrRootNotFound is returned when no workspace encloses the start directory.
var ErrRootNotFound = errors.New("no sitecost workspace found (run 'sitecost init')")

// FindRoot walks upwards from startDir to the nearest directory holding a
// workspace system directory and returns its absolute path.
func FindRoot(startDir string, systemDirs ...string) (string, error) {
	if len(systemDirs) == 0 {
		systemDirs = []string{fs.DefaultSystemDir}
	}
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		for _, name := range systemDirs {
			if isDir(filepath.Join(dir, name)) {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrRootNotFound
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
