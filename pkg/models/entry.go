// Package models contains the data types shared by the API client and the browser.
package models

import (
	"fmt"
)

// EntryType distinguishes files from folders.
type EntryType string

const (
	TypeFile   EntryType = "file"
	TypeFolder EntryType = "folder"
)

// FileEntry is one file or folder as returned by the listing endpoint.
type FileEntry struct {
	ID           ID        `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Type         EntryType `json:"type"`
	Size         int64     `json:"size"`
	CreateTime   Timestamp `json:"createTime"`
	ModifiedTime Timestamp `json:"modifiedTime"`
}

// IsFolder reports whether the entry is a folder.
func (e FileEntry) IsFolder() bool {
	return e.Type == TypeFolder
}

// EffectiveSize returns the byte size, always 0 for folders.
func (e FileEntry) EffectiveSize() int64 {
	if e.IsFolder() {
		return 0
	}
	return e.Size
}

// ShareInfo describes a share link created for a path.
type ShareInfo struct {
	ID          ID        `json:"id"`
	Path        string    `json:"path"`
	URL         string    `json:"url"`
	Code        string    `json:"code,omitempty"`
	ExpireHours int       `json:"expireHours"`
	ExpiresAt   Timestamp `json:"expiresAt"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// UserInfo is returned by GET /user/info.
type UserInfo struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Nickname string `json:"nikenName,omitempty"`
	Role     string `json:"role"`
}

// CloudInfo holds the storage quota of a user.
type CloudInfo struct {
	ID            ID    `json:"id"`
	UsedCapacity  int64 `json:"usedCapacity"`
	TotalCapacity int64 `json:"totalCapacity"`
}

// UsedPercent returns used capacity as a percentage of the total.
func (c CloudInfo) UsedPercent() float64 {
	if c.TotalCapacity <= 0 {
		return 0
	}
	return float64(c.UsedCapacity) / float64(c.TotalCapacity) * 100
}

// SortOrder is the listing order requested from the backend.
type SortOrder string

const (
	SortNameAsc  SortOrder = "name-asc"
	SortNameDesc SortOrder = "name-desc"
	SortDateAsc  SortOrder = "date-asc"
	SortDateDesc SortOrder = "date-desc"
	SortSizeAsc  SortOrder = "size-asc"
	SortSizeDesc SortOrder = "size-desc"

	DefaultSort = SortNameAsc
)

var sortOrders = []SortOrder{SortNameAsc, SortNameDesc, SortDateAsc, SortDateDesc, SortSizeAsc, SortSizeDesc}

// SortOrders returns every supported sort order.
func SortOrders() []SortOrder {
	return append([]SortOrder(nil), sortOrders...)
}

// ParseSortOrder validates s. An empty string yields DefaultSort.
func ParseSortOrder(s string) (SortOrder, error) {
	if s == "" {
		return DefaultSort, nil
	}
	for _, o := range sortOrders {
		if string(o) == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// ViewMode is the presentation layout of a listing.
type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"

	DefaultView = ViewGrid
)

// ParseViewMode validates s. An empty string yields DefaultView.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case "":
		return DefaultView, nil
	case ViewGrid, ViewList:
		return ViewMode(s), nil
	}
	return "", fmt.Errorf("unknown view mode %q", s)
}
