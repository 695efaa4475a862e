// Package testutil holds shared test fixtures.
package testutil

import (
	"net"
	"path"
	"testing"

	"github.com/spf13/afero"
)

// CreateTestFilesystemWithContent creates an in-memory filesystem with the given
// files, keyed by slash paths relative to the served root
func CreateTestFilesystemWithContent(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/", 0755); err != nil {
		t.Fatalf("Failed to create root: %v", err)
	}
	for name, content := range files {
		p := path.Join("/", name)
		if err := fs.MkdirAll(path.Dir(p), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", p, err)
		}
		if err := afero.WriteFile(fs, p, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", p, err)
		}
	}
	return fs
}

// FreePort returns a TCP port that was free a moment ago
func FreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find a free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		t.Fatalf("Failed to release port: %v", err)
	}
	return port
}
