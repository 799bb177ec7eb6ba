// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesBySuffix recursively searches the given root path for all files
// whose name ends with the specified suffix. Results are returned sorted so
// callers see a deterministic order regardless of filesystem walk order.
func FindFilesBySuffix(rootPath string, suffix string) ([]string, error) {
	if suffix == "" {
		panic("suffix must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// FindAllFiles recursively lists every regular file under the given root,
// sorted. A missing root is not an error; it yields an empty list, because
// output directories are created lazily by the tools that fill them.
func FindAllFiles(rootPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
