// Package discovery lists input files for the generation stages and filters
// them with include/exclude globs.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File describes a discovered filesystem entry.
type File struct {
	Path  string // path as found under the walked root
	Name  string // base name
	IsDir bool
}

// Filter selects files whose base name matches Include and does not match
// Exclude. Directories, dot files and names starting with "_" never match.
// An empty Include matches every name; an empty Exclude excludes nothing.
type Filter struct {
	Include string
	Exclude string
}

// ListRecursively returns every entry below root, at any depth. If root is a
// regular file it is returned on its own. A missing root yields no files and
// no error since managed directories may not exist before the first build.
func ListRecursively(root string) ([]File, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return []File{{Path: root, Name: info.Name()}}, nil
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		files = append(files, File{Path: path, Name: d.Name(), IsDir: d.IsDir()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// Match reports whether f passes the filter.
func (flt Filter) Match(f File) bool {
	if f.IsDir {
		return false
	}
	if strings.HasPrefix(f.Name, ".") || strings.HasPrefix(f.Name, "_") {
		return false
	}
	if flt.Include != "" && !globMatch(flt.Include, f.Name) {
		return false
	}
	if flt.Exclude != "" && globMatch(flt.Exclude, f.Name) {
		return false
	}
	return true
}

// Apply keeps the files matching the filter, ordered by path.
func (flt Filter) Apply(files []File) []File {
	var out []File
	for _, f := range files {
		if flt.Match(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Find lists root recursively and returns the paths accepted by flt.
func Find(root string, flt Filter) ([]string, error) {
	files, err := ListRecursively(root)
	if err != nil {
		return nil, err
	}
	matched := flt.Apply(files)
	paths := make([]string, 0, len(matched))
	for _, f := range matched {
		paths = append(paths, f.Path)
	}
	return paths, nil
}

// ExtensionFilter returns the filter selecting "*.<ext>" files.
func ExtensionFilter(ext string) Filter {
	return Filter{Include: "*." + strings.TrimPrefix(ext, ".")}
}

// globMatch treats a malformed pattern as a non-match.
func globMatch(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}
