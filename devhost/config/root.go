package config

import (
	"os"
	"path/filepath"
)

// ProjectMarkers are the files that identify a project root.
var ProjectMarkers = []string{"composer.json", "package.json", "router.php"}

// FindProjectRoot walks upward from start and returns the first directory that contains
// one of ProjectMarkers.
func FindProjectRoot(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		for _, marker := range ProjectMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// DetectProjectRoot looks for a project root above the executable, then above the working
// directory, and falls back to the working directory.
func DetectProjectRoot() string {
	if exe, err := os.Executable(); err == nil {
		if root, ok := FindProjectRoot(filepath.Dir(exe)); ok {
			return root
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if root, ok := FindProjectRoot(cwd); ok {
		return root
	}
	return cwd
}
