// Package tree provides path utilities for the remote storage tree.
package tree

import (
	"path"
	"strings"

	"github.com/lmaocloud/cloudbrowser/pkg/models"
)

// Root is the path of the storage root.
const Root = "/"

// Crumb is one breadcrumb segment.
type Crumb struct {
	Label string
	Path  string
}

// RootLabel is the breadcrumb label of the storage root.
const RootLabel = "Home"

// Clean normalizes p into an absolute, slash-separated path without a trailing slash.
// An empty or blank p yields "".
func Clean(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// IsAbs reports whether p is an absolute storage path.
func IsAbs(p string) bool {
	return strings.HasPrefix(p, "/")
}

// BuildChildPath constructs a child path from parent + name.
func BuildChildPath(parentPath, name string) string {
	if parentPath == "" || parentPath == Root {
		return "/" + name
	}
	return strings.TrimSuffix(parentPath, "/") + "/" + name
}

// Parent returns the parent directory of p. The parent of the root is the root.
func Parent(p string) string {
	p = Clean(p)
	if p == "" || p == Root {
		return Root
	}
	return path.Dir(p)
}

// Base returns the last element of p.
func Base(p string) string {
	p = Clean(p)
	if p == "" || p == Root {
		return ""
	}
	return path.Base(p)
}

// IsWithin reports whether p equals dir or lies below it.
func IsWithin(p, dir string) bool {
	p, dir = Clean(p), Clean(dir)
	if p == "" || dir == "" {
		return false
	}
	if dir == Root || p == dir {
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}

// Breadcrumbs splits p into the trail from the root to p.
// The first crumb is always the root.
func Breadcrumbs(p string) []Crumb {
	crumbs := []Crumb{{Label: RootLabel, Path: Root}}
	p = Clean(p)
	if p == "" || p == Root {
		return crumbs
	}
	current := ""
	for _, part := range strings.Split(p, "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		crumbs = append(crumbs, Crumb{Label: part, Path: current})
	}
	return crumbs
}

// SplitExt splits a file name into base name and extension (with the dot).
// Names without a dot, or whose only dot is the first character, have no extension.
func SplitExt(name string) (base, ext string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

// FindByID returns the index of the entry with the given ID, or -1.
func FindByID(entries []models.FileEntry, id models.ID) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

// FindByName returns the index of the entry with the given name, or -1.
func FindByName(entries []models.FileEntry, name string) int {
	for i := range entries {
		if entries[i].Name == name {
			return i
		}
	}
	return -1
}

// CountFolders counts the folders in entries.
func CountFolders(entries []models.FileEntry) int {
	n := 0
	for _, e := range entries {
		if e.IsFolder() {
			n++
		}
	}
	return n
}
