// Package protocol defines the API request/response types.
package protocol

import (
	"encoding/json"
)

// Application codes carried in the envelope "code" field.
const (
	CodeOK               = 200
	CodeUnauthorized     = 401
	CodeForbidden        = 403
	CodeQuotaExhausted   = 10202
	CodeUploadConflict   = 10205
	CodeRenameFailed     = 10208
	CodeFileNotFound     = 10209
	CodeFilePathInvalid  = 10210
	CodeFileExists       = 10217
	CodeResourceExists   = 10102
	CodeResourceNotFound = 10101
)

// Envelope wraps every JSON response: {code, msg, data}.
// Some handlers use "message" instead of "msg".
type Envelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodes an envelope. A body without a "code" field counts as success.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	type plain Envelope
	p := plain{Code: CodeOK}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = Envelope(p)
	return nil
}

// OK reports whether the envelope carries a success code.
func (e *Envelope) OK() bool {
	return e.Code == CodeOK
}

// Text returns the server-provided message, if any.
func (e *Envelope) Text() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Message
}

// DecodeData unmarshals the data field into v. A missing data field leaves v untouched.
func (e *Envelope) DecodeData(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// CreateFolderRequest is the body for POST /file/directory.
type CreateFolderRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// CreateTextRequest is the body for POST /file/text.
type CreateTextRequest struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// FileIDRequest is the body for delete, restore and permanent delete.
type FileIDRequest struct {
	FileID string `json:"fileId"`
}

// RenameRequest is the body for POST /file/rename.
type RenameRequest struct {
	FileID  string `json:"fileId"`
	NewName string `json:"newName"`
}

// MoveRequest is the body for POST /file/move.
type MoveRequest struct {
	SourcePath string `json:"sourcePath"`
	TargetPath string `json:"targetPath"`
}

// ShareRequest is the body for POST /share/create.
type ShareRequest struct {
	Path        string `json:"path"`
	ExpireHours int    `json:"expireHours"`
}

// CancelShareRequest is the body for POST /share/cancel.
type CancelShareRequest struct {
	ShareID string `json:"shareId"`
}
