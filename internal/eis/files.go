package eis

import (
	"path/filepath"

	"labpipe/internal/fsutil"
)

// FileSuffix marks the first EIS sweep of a test; the archive only ever
// analyzes that sweep.
const FileSuffix = "_EIS00001.csv"

// Scope selects which part of the raw data tree a scan covers. The
// instrument exports duplicate spectra into "All" directories; the main
// analysis excludes them.
type Scope string

const (
	ScopeMain Scope = "main"
	ScopeAll  Scope = "all"
)

// FindFiles walks the raw data tree for EIS files within the given scope,
// returning sorted paths.
func FindFiles(dir string, scope Scope) ([]string, error) {
	candidates, err := fsutil.FindFilesBySuffix(dir, FileSuffix)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, path := range candidates {
		inAll := filepath.Base(filepath.Dir(path)) == "All"
		if (scope == ScopeAll) == inAll {
			files = append(files, path)
		}
	}
	return files, nil
}
