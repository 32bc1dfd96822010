// Package blob resolves the file references stored on file messages and
// deletes the underlying files.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidRef = errors.New("invalid blob reference")

// FileStore deletes uploads kept under a local root directory.
//
// References come in two shapes: a download URL of the form
// ".../o/<escaped path>?alt=media" as handed out by hosted object
// storage, or a plain relative path. Both resolve to root/<path>.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	return &FileStore{root: abs}, nil
}

// Delete removes the file behind ref. A missing file is not an error.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob %q: %w", ref, err)
	}
	return nil
}

// Resolve maps ref to an absolute path under the root.
func (s *FileStore) Resolve(ref string) (string, error) {
	rel, err := ObjectPath(ref)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes root", ErrInvalidRef, ref)
	}
	if full == s.root {
		return "", fmt.Errorf("%w: %q names the root", ErrInvalidRef, ref)
	}
	return full, nil
}

// ObjectPath extracts the object path from a reference.
func ObjectPath(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRef)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	if u.Scheme == "" && u.Host == "" {
		return strings.TrimPrefix(u.Path, "/"), nil
	}

	// EscapedPath keeps %2F intact so the object name can be split off
	// before it is unescaped.
	escaped := u.EscapedPath()
	i := strings.LastIndex(escaped, "/o/")
	if i < 0 {
		return "", fmt.Errorf("%w: %q has no object path", ErrInvalidRef, ref)
	}
	name, err := url.PathUnescape(escaped[i+len("/o/"):])
	if err != nil || name == "" {
		return "", fmt.Errorf("%w: %q has no object path", ErrInvalidRef, ref)
	}
	return name, nil
}

// UploadPrefix is the object folder holding userID's uploads to a lobby.
func UploadPrefix(lobbyID, userID string) string {
	return "chat/" + lobbyID + "/" + userID + "/"
}

// CheckOwned returns ErrInvalidRef unless ref names an object below
// prefix. The object path must already be clean, so "a/../b" and "a//b"
// are rejected rather than normalized.
func CheckOwned(ref, prefix string) error {
	name, err := ObjectPath(ref)
	if err != nil {
		return err
	}
	if path.Clean(name) != name || !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
		return fmt.Errorf("%w: %q is not under %q", ErrInvalidRef, ref, prefix)
	}
	return nil
}
