package utils

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

var ErrProjectRootNotFound = errors.New("project root not found (no go.mod above source dir)")

// FindProjectRoot walks up from this source file to the directory holding go.mod
func FindProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", ErrProjectRootNotFound
	}
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrProjectRootNotFound
		}
		dir = parent
	}
}

// ProjectPath joins elem onto the project root
func ProjectPath(elem ...string) (string, error) {
	root, err := FindProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{root}, elem...)...), nil
}

// MigrationsSource is the golang-migrate file source for the bundled
// networks schema
func MigrationsSource() (string, error) {
	dir, err := ProjectPath("migrations")
	if err != nil {
		return "", err
	}
	return "file://" + dir, nil
}
