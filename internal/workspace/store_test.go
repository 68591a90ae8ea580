package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "filedesk-workspace")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := New(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNew_CreatesRoot(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "filedesk-workspace")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	root := filepath.Join(tmpDir, "not", "yet", "there")
	store, err := New(root)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	info, err := os.Stat(store.Root())
	if err != nil {
		t.Fatalf("Root should exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("Root should be a directory")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"root level", "notes.txt", "hello"},
		{"subdirectory", "data/report.txt", "quarterly numbers"},
		{"empty content", "empty.txt", ""},
		{"unicode content", "unicode.txt", "héllo 世界"},
		{"multiline", "multi.txt", "line one\nline two\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Write(tt.file, tt.content); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			got, err := store.Read(tt.file)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if got != tt.content {
				t.Errorf("Round trip mismatch: expected %q, got %q", tt.content, got)
			}
		})
	}
}

func TestWrite_Overwrites(t *testing.T) {
	store := newTestStore(t)

	if err := store.Write("a.txt", "first"); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("a.txt", "second"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Read("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "second" {
		t.Errorf("Expected overwritten content 'second', got %q", got)
	}
}

func TestRead_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Read("missing.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRead_Directory(t *testing.T) {
	store := newTestStore(t)

	if err := store.Write("dir/file.txt", "x"); err != nil {
		t.Fatal(err)
	}

	_, err := store.Read("dir")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Reading a directory should return ErrNotFound, got %v", err)
	}
}

func TestRead_NotText(t *testing.T) {
	store := newTestStore(t)

	path := filepath.Join(store.Root(), "binary.bin")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x80}, 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Read("binary.bin")
	if !errors.Is(err, ErrNotText) {
		t.Errorf("Expected ErrNotText, got %v", err)
	}
}

func TestPathEscape(t *testing.T) {
	store := newTestStore(t)

	names := []string{
		"",
		"   ",
		"../outside.txt",
		"../../etc/passwd",
		"data/../../outside.txt",
		"/etc/passwd",
		"bad\x00name.txt",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Read(name); !errors.Is(err, ErrPathEscape) {
				t.Errorf("Read(%q): expected ErrPathEscape, got %v", name, err)
			}
			if err := store.Write(name, "x"); !errors.Is(err, ErrPathEscape) {
				t.Errorf("Write(%q): expected ErrPathEscape, got %v", name, err)
			}
		})
	}
}

func TestPathEscape_NoMutation(t *testing.T) {
	store := newTestStore(t)

	parent := filepath.Dir(store.Root())
	target := filepath.Join(parent, "escaped.txt")
	os.Remove(target)

	if err := store.Write("../escaped.txt", "should not land"); !errors.Is(err, ErrPathEscape) {
		t.Fatalf("Expected ErrPathEscape, got %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("Rejected write must not create a file outside the root")
	}
}

func TestPathEscape_ThroughSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not reliable on windows")
	}

	store := newTestStore(t)

	outside, err := os.MkdirTemp("", "filedesk-outside")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(outside)

	link := filepath.Join(store.Root(), "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatal(err)
	}

	if err := store.Write("link/escape.txt", "x"); !errors.Is(err, ErrPathEscape) {
		t.Errorf("Write through symlink should return ErrPathEscape, got %v", err)
	}
	if _, err := store.Read("link/anything.txt"); !errors.Is(err, ErrPathEscape) {
		t.Errorf("Read through symlink should return ErrPathEscape, got %v", err)
	}
}

func TestWrite_InsideSubdirectory(t *testing.T) {
	store := newTestStore(t)

	if err := store.Write("a/b/c/deep.txt", "deep"); err != nil {
		t.Fatalf("Write into nested directory failed: %v", err)
	}

	got, err := store.Read("a/b/c/deep.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "deep" {
		t.Errorf("Expected 'deep', got %q", got)
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	inner := ErrWrite
	err := &StoreError{Op: "write", Name: "a.txt", Err: inner}

	if !errors.Is(err, ErrWrite) {
		t.Error("StoreError should unwrap to its inner error")
	}
}
