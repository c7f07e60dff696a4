package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/protocol"
)

// TokenFile holds a saved authentication token.
type TokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Server    string    `json:"server"`
	Username  string    `json:"username"`
}

// IsExpired returns true if the token has expired (with optional margin).
// A token without a known expiry never expires locally.
func (t *TokenFile) IsExpired(margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The zero time is returned when the token is not a JWT or has no exp claim.
func TokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(normalizeToken(token), claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

var errNoToken = errors.New("no saved token")

// TokenStore persists the session token on disk, the client-side
// counterpart of the browser's local storage.
type TokenStore struct {
	path string
}

// NewTokenStore returns a store backed by the file at path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Path returns the token file location.
func (s *TokenStore) Path() string {
	return s.path
}

// Save writes the token file with owner-only permissions.
func (s *TokenStore) Save(tf *TokenFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the token file.
func (s *TokenStore) Load() (*TokenFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errNoToken
		}
		return nil, err
	}
	var tf TokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &tf, nil
}

// Delete removes the token file.
func (s *TokenStore) Delete() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return errNoToken
	}
	return err
}

// IsNoToken reports whether err means no token has been saved.
func IsNoToken(err error) bool {
	return errors.Is(err, errNoToken)
}

// Login authenticates with username/password. On success the token is
// installed on the client and returned as a TokenFile ready to save.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenFile, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, Validation("login", "username and password are required")
	}

	var token string
	err := c.call(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/auth/login",
		body:   protocol.LoginRequest{Username: username, Password: password},
	}, &token)
	if err != nil {
		return nil, err
	}
	token = normalizeToken(token)
	if token == "" {
		return nil, &Error{Op: "login", Kind: KindApplication, Message: "server returned an empty token"}
	}

	c.SetAuthToken(token)
	return &TokenFile{
		Token:     token,
		ExpiresAt: TokenExpiry(token),
		Server:    c.baseURL,
		Username:  username,
	}, nil
}

// Register creates a new account. Password confirmation is checked before
// any request is made.
func (c *Client) Register(ctx context.Context, username, password, confirm, email string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return Validation("register", "username is required")
	case password == "":
		return Validation("register", "password is required")
	case password != confirm:
		return Validation("register", "passwords do not match")
	}

	return c.call(ctx, request{
		op:     "register",
		method: http.MethodPost,
		path:   "/auth/register",
		body:   protocol.RegisterRequest{Username: username, Password: password, Email: email},
	}, nil)
}

// Logout forgets the session locally. The backend keeps no session state.
func (c *Client) Logout() error {
	c.SetAuthToken("")
	if c.tokens == nil {
		return nil
	}
	if err := c.tokens.Delete(); err != nil && !IsNoToken(err) {
		return fmt.Errorf("delete token file: %w", err)
	}
	return nil
}

// UserInfo returns the profile of the logged-in user.
func (c *Client) UserInfo(ctx context.Context) (*models.UserInfo, error) {
	var info models.UserInfo
	err := c.call(ctx, request{
		op:     "user-info",
		method: http.MethodGet,
		path:   "/user/info",
		retry:  true,
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// CloudInfo returns the storage quota of username.
func (c *Client) CloudInfo(ctx context.Context, username string) (*models.CloudInfo, error) {
	var info models.CloudInfo
	err := c.call(ctx, request{
		op:     "cloud-info",
		method: http.MethodGet,
		path:   "/cloud/user",
		query:  url.Values{"username": {username}},
		retry:  true,
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}
