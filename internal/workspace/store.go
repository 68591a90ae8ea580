// Package workspace implements the sandboxed file store the agent's
// file tools operate on. Every read and write is confined to a single
// root directory fixed at startup.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"
)

// Predefined errors
var (
	ErrPathEscape = errors.New("path escapes the workspace")
	ErrNotFound   = errors.New("file not found")
	ErrNotText    = errors.New("file is not valid UTF-8 text")
	ErrWrite      = errors.New("write failed")
)

// StoreError wraps a store failure with the operation and filename
type StoreError struct {
	Op   string
	Name string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("workspace %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// mutexShards is the size of the per-filename lock table
const mutexShards = 32

// Store is a file store bound to one absolute root directory.
// The root is trusted configuration; filenames are not.
type Store struct {
	root  string
	locks [mutexShards]sync.Mutex
}

// New creates a store rooted at dir. The directory is created if missing
// and the root is canonicalized so later prefix checks are reliable.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}

	// Resolve symlinks in the root itself so resolved file paths and the
	// root compare under the same canonical form.
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize workspace root: %w", err)
	}

	return &Store{root: canonical}, nil
}

// Root returns the canonical workspace root
func (s *Store) Root() string {
	return s.root
}

// resolve maps a caller-supplied filename to an absolute path inside the
// root. It runs before any filesystem syscall on the target: rejected
// names cause no mutation.
func (s *Store) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrPathEscape
	}
	if strings.ContainsRune(name, 0) {
		return "", ErrPathEscape
	}
	// Absolute names never refer into the workspace, even when they
	// happen to point at it.
	if filepath.IsAbs(name) {
		return "", ErrPathEscape
	}

	joined := filepath.Join(s.root, name)

	// filepath.Join cleans ".." lexically; EvalSymlinks additionally
	// resolves symlink indirection for path components that exist.
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if os.IsNotExist(err) {
			// Target does not exist yet (new file). Canonicalize the
			// deepest existing ancestor instead and re-join the rest.
			resolved, err = s.resolveMissing(joined)
			if err != nil {
				return "", err
			}
		} else {
			return "", &StoreError{Op: "resolve", Name: name, Err: err}
		}
	}

	if !s.inRoot(resolved) {
		return "", ErrPathEscape
	}
	return resolved, nil
}

// resolveMissing canonicalizes a path whose tail components do not exist
// yet by walking up to the nearest existing ancestor.
func (s *Store) resolveMissing(path string) (string, error) {
	dir, rest := filepath.Dir(path), filepath.Base(path)
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		if dir == filepath.Dir(dir) {
			return "", ErrPathEscape
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = filepath.Dir(dir)
	}
}

// inRoot reports whether path is the root or a descendant of it
func (s *Store) inRoot(path string) bool {
	if path == s.root {
		return true
	}
	return strings.HasPrefix(path, s.root+string(filepath.Separator))
}

// lockFor returns the shard mutex guarding a filename
func (s *Store) lockFor(path string) *sync.Mutex {
	var sum uint32
	for i := 0; i < len(path); i++ {
		sum = sum*31 + uint32(path[i])
	}
	return &s.locks[sum%mutexShards]
}

// Read returns the full content of a workspace file as a string
func (s *Store) Read(name string) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", &StoreError{Op: "read", Name: name, Err: err}
	}
	if info.IsDir() {
		return "", ErrNotFound
	}

	mu := s.lockFor(path)
	mu.Lock()
	data, err := os.ReadFile(path)
	mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", &StoreError{Op: "read", Name: name, Err: err}
	}

	if !utf8.Valid(data) {
		return "", ErrNotText
	}
	return string(data), nil
}

// Write creates or overwrites a workspace file with the given content.
// Intermediate directories are created, but only inside the root.
func (s *Store) Write(name string, content string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != s.root {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &StoreError{Op: "write", Name: name, Err: fmt.Errorf("%w: %v", ErrWrite, err)}
		}
	}

	mu := s.lockFor(path)
	mu.Lock()
	err = os.WriteFile(path, []byte(content), 0644)
	mu.Unlock()
	if err != nil {
		return &StoreError{Op: "write", Name: name, Err: fmt.Errorf("%w: %v", ErrWrite, err)}
	}

	return nil
}
