// Package rulesfs serves the bundled default rule texts from a directory.
package rulesfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Dir reads rule resources (base.md, vip.md, ...) from a directory on disk.
type Dir struct {
	root string
}

// NewDir returns a source rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// ModTime returns the last modification time of the named resource.
func (d *Dir) ModTime(name string) (time.Time, error) {
	path, err := d.path(name)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Read returns the resource content.
func (d *Dir) Read(name string) (string, error) {
	path, err := d.path(name)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// path keeps lookups inside root.
func (d *Dir) path(name string) (string, error) {
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("rulesfs: invalid resource name %q", name)
	}
	return filepath.Join(d.root, clean), nil
}
