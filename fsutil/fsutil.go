// Package fsutil provides path resolution and file enumeration for transfer
// sessions: canonicalizing user-supplied paths, querying sizes eagerly so
// session totals are fixed before any I/O starts, and locating the local
// downloads directory.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrPathNotFound indicates a supplied path does not exist or is unreadable.
var ErrPathNotFound = errors.New("path does not exist")

// ErrNoPaths indicates an empty path list was supplied.
var ErrNoPaths = errors.New("no files provided")

// ErrDirectoryTraversal indicates a path that would escape its base
// directory.
var ErrDirectoryTraversal = errors.New("path contains directory traversal")

// Resolved describes the outcome of resolving a single path.
type Resolved struct {
	Exists        bool
	CanonicalPath string
	Size          uint64
	IsDir         bool
}

// FileInfo describes one regular file discovered during enumeration.
// RelativePath is computed against the enumeration root so receivers can
// reconstruct directory layouts.
type FileInfo struct {
	Path         string
	Name         string
	RelativePath string
	Size         uint64
}

// ResolvePath canonicalizes path and queries its size. It returns
// ErrPathNotFound (wrapped with the offending path) for missing or
// unreadable paths.
func ResolvePath(path string) (Resolved, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Resolved{}, fmt.Errorf("invalid file path %q: %w", path, err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Resolved{}, fmt.Errorf("invalid file path %q: %w", path, ErrPathNotFound)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return Resolved{}, fmt.Errorf("invalid file path %q: %w", path, ErrPathNotFound)
	}

	resolved := Resolved{
		Exists:        true,
		CanonicalPath: canonical,
		IsDir:         info.IsDir(),
	}
	if !info.IsDir() {
		resolved.Size = uint64(info.Size())
	}
	return resolved, nil
}

// EnumerateFiles expands the supplied paths into a flat, ordered list of
// regular files. Directories are walked recursively; relative paths are
// computed against the directory itself so a shared folder keeps its
// internal layout. A bare file's relative path is its own name.
//
// Every path is resolved eagerly; the first missing path aborts the whole
// enumeration so a session never starts with a partial file list.
func EnumerateFiles(paths []string) ([]FileInfo, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	var files []FileInfo
	for _, path := range paths {
		resolved, err := ResolvePath(path)
		if err != nil {
			return nil, err
		}

		if !resolved.IsDir {
			files = append(files, FileInfo{
				Path:         resolved.CanonicalPath,
				Name:         FileName(resolved.CanonicalPath),
				RelativePath: FileName(resolved.CanonicalPath),
				Size:         resolved.Size,
			})
			continue
		}

		dirFiles, err := enumerateDirectory(resolved.CanonicalPath)
		if err != nil {
			return nil, err
		}
		files = append(files, dirFiles...)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "EnumerateFiles",
		"path_count": len(paths),
		"file_count": len(files),
	}).Debug("Enumerated files for transfer")

	return files, nil
}

// enumerateDirectory walks root and collects every regular file beneath it.
func enumerateDirectory(root string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("invalid file path %q: %w", path, ErrPathNotFound)
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("invalid file path %q: %w", path, ErrPathNotFound)
		}
		rel, err := RelativePath(path, root)
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Path:         path,
			Name:         d.Name(),
			RelativePath: rel,
			Size:         uint64(info.Size()),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// FileName extracts the final path element, defaulting to "unknown".
func FileName(path string) string {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "unknown"
	}
	return name
}

// DirectoryName extracts the final path element of a directory, defaulting
// to "folder".
func DirectoryName(path string) string {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "folder"
	}
	return name
}

// RelativePath computes the path of file relative to base. If file equals
// base it returns just the file name.
func RelativePath(file, base string) (string, error) {
	if file == base {
		return FileName(file), nil
	}
	rel, err := filepath.Rel(base, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is not within %q", file, base)
	}
	return filepath.ToSlash(rel), nil
}

// SecurePath joins rel onto base, rejecting absolute paths and any path
// that resolves outside base after cleaning. Relative paths arriving from
// peers must go through this before touching the filesystem.
func SecurePath(base, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("invalid relative path %q: %w", rel, ErrDirectoryTraversal)
	}
	joined := filepath.Join(base, filepath.FromSlash(rel))
	if joined == filepath.Clean(base) || !strings.HasPrefix(joined, filepath.Clean(base)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid relative path %q: %w", rel, ErrDirectoryTraversal)
	}
	return joined, nil
}

// TotalSize sums the sizes of the given files.
func TotalSize(files []FileInfo) uint64 {
	var total uint64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// DownloadsDir locates the directory for received files: $HOME/Downloads
// when a home directory exists, otherwise a ginseng_downloads directory
// under the working directory.
func DownloadsDir() (string, error) {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Downloads"), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.New("could not determine downloads directory")
	}
	return filepath.Join(cwd, "ginseng_downloads"), nil
}

// FormatBytes converts a byte count to a human-readable string with two
// decimal places, e.g. "1.50 KB".
func FormatBytes(bytes uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	const threshold = 1024

	if bytes == 0 {
		return "0 B"
	}

	size := float64(bytes)
	unit := 0
	for size >= threshold && unit < len(units)-1 {
		size /= threshold
		unit++
	}

	if unit == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.2f %s", size, units[unit])
}
