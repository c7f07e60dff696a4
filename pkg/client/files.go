package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/protocol"
)

// ListFiles returns the entries of dir in the requested order.
// Listings are never retried; the user refreshes instead.
func (c *Client) ListFiles(ctx context.Context, dir string, sort models.SortOrder) ([]models.FileEntry, error) {
	if dir == "" {
		dir = "/"
	}
	if sort == "" {
		sort = models.DefaultSort
	}

	var entries []models.FileEntry
	err := c.call(ctx, request{
		op:     "list",
		method: http.MethodGet,
		path:   "/file/list",
		query:  url.Values{"path": {dir}, "sort": {string(sort)}},
	}, &entries)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.FileEntry{}
	}
	return entries, nil
}

// CreateFolder creates name inside parent.
func (c *Client) CreateFolder(ctx context.Context, parent, name string) error {
	if strings.TrimSpace(name) == "" {
		return Validation("create-folder", "folder name is required")
	}
	return c.call(ctx, request{
		op:     "create-folder",
		method: http.MethodPost,
		path:   "/file/directory",
		body:   protocol.CreateFolderRequest{Path: parent, Name: name},
	}, nil)
}

// CreateTextFile creates a text file with the given content inside parent.
func (c *Client) CreateTextFile(ctx context.Context, parent, name, content string) error {
	if strings.TrimSpace(name) == "" {
		return Validation("create-text", "file name is required")
	}
	return c.call(ctx, request{
		op:     "create-text",
		method: http.MethodPost,
		path:   "/file/text",
		body:   protocol.CreateTextRequest{Path: parent, Name: name, Content: content},
	}, nil)
}

// Delete moves a file or folder to the trash.
func (c *Client) Delete(ctx context.Context, id models.ID) error {
	return c.call(ctx, request{
		op:     "delete",
		method: http.MethodPost,
		path:   "/file/delete",
		body:   protocol.FileIDRequest{FileID: id.String()},
	}, nil)
}

// Rename gives the entry a new name within its folder.
func (c *Client) Rename(ctx context.Context, id models.ID, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return Validation("rename", "new name is required")
	}
	return c.call(ctx, request{
		op:     "rename",
		method: http.MethodPost,
		path:   "/file/rename",
		body:   protocol.RenameRequest{FileID: id.String(), NewName: newName},
	}, nil)
}

// Move moves the entry at sourcePath into the folder targetPath.
func (c *Client) Move(ctx context.Context, sourcePath, targetPath string) error {
	return c.call(ctx, request{
		op:     "move",
		method: http.MethodPost,
		path:   "/file/move",
		body:   protocol.MoveRequest{SourcePath: sourcePath, TargetPath: targetPath},
	}, nil)
}

// ListTrash returns the entries currently in the trash.
func (c *Client) ListTrash(ctx context.Context) ([]models.FileEntry, error) {
	var entries []models.FileEntry
	err := c.call(ctx, request{
		op:     "trash-list",
		method: http.MethodGet,
		path:   "/file/trash",
		retry:  true,
	}, &entries)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.FileEntry{}
	}
	return entries, nil
}

// Restore moves an entry out of the trash.
func (c *Client) Restore(ctx context.Context, id models.ID) error {
	return c.call(ctx, request{
		op:     "trash-restore",
		method: http.MethodPost,
		path:   "/file/trash/restore",
		body:   protocol.FileIDRequest{FileID: id.String()},
	}, nil)
}

// PermanentlyDelete removes an entry from the trash for good.
func (c *Client) PermanentlyDelete(ctx context.Context, id models.ID) error {
	return c.call(ctx, request{
		op:     "trash-delete",
		method: http.MethodPost,
		path:   "/file/trash/delete",
		body:   protocol.FileIDRequest{FileID: id.String()},
	}, nil)
}

// Share requests a share link for path valid for expireHours.
func (c *Client) Share(ctx context.Context, path string, expireHours int) (*models.ShareInfo, error) {
	if expireHours <= 0 {
		return nil, Validation("share", "expiry must be at least one hour")
	}

	var raw json.RawMessage
	err := c.call(ctx, request{
		op:     "share",
		method: http.MethodPost,
		path:   "/share/create",
		body:   protocol.ShareRequest{Path: path, ExpireHours: expireHours},
	}, &raw)
	if err != nil {
		return nil, err
	}

	info := &models.ShareInfo{Path: path, ExpireHours: expireHours}
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0:
	case raw[0] == '"':
		// Some deployments answer with the bare link.
		if err := json.Unmarshal(raw, &info.URL); err != nil {
			return nil, &Error{Op: "share", Kind: KindApplication, Message: "unexpected response data", Err: err}
		}
	default:
		if err := json.Unmarshal(raw, info); err != nil {
			return nil, &Error{Op: "share", Kind: KindApplication, Message: "unexpected response data", Err: err}
		}
	}
	return info, nil
}

// ListShares returns the links created by the current user.
func (c *Client) ListShares(ctx context.Context) ([]models.ShareInfo, error) {
	var shares []models.ShareInfo
	err := c.call(ctx, request{
		op:     "share-list",
		method: http.MethodGet,
		path:   "/share/list",
		retry:  true,
	}, &shares)
	return shares, err
}

// SharedWithMe returns the entries other users shared with the current user.
func (c *Client) SharedWithMe(ctx context.Context) ([]models.FileEntry, error) {
	var entries []models.FileEntry
	err := c.call(ctx, request{
		op:     "share-received",
		method: http.MethodGet,
		path:   "/share/received",
		retry:  true,
	}, &entries)
	return entries, err
}

// CancelShare revokes a share link.
func (c *Client) CancelShare(ctx context.Context, shareID models.ID) error {
	return c.call(ctx, request{
		op:     "share-cancel",
		method: http.MethodPost,
		path:   "/share/cancel",
		body:   protocol.CancelShareRequest{ShareID: shareID.String()},
	}, nil)
}
