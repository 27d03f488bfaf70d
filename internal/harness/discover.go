package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path not found: %s", e.Path)
}

// IsScenarioFile reports whether path has a scenario file extension.
func IsScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// FindScenarioFiles expands paths into scenario files. Files are returned
// as given; directories are walked recursively for .yaml, .yml and .cue
// files. If filter is non-empty, only files whose base name (without
// extension) matches the glob are returned. Results from each directory
// are sorted.
func FindScenarioFiles(paths []string, filter string) ([]string, error) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{Path: path}
		}
		if err != nil {
			return nil, fmt.Errorf("error accessing %s: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		var found []string
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !IsScenarioFile(p) {
				return nil
			}

			if filter != "" {
				base := filepath.Base(p)
				name := strings.TrimSuffix(base, filepath.Ext(base))
				matched, err := filepath.Match(filter, name)
				if err != nil {
					return fmt.Errorf("invalid filter pattern: %w", err)
				}
				if !matched {
					return nil
				}
			}

			found = append(found, p)
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	return files, nil
}
