package testing

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/liliang-cn/deploytest/pkg/types"
)

// Fixture is a scratch directory for file-based tests. Every path argument
// is relative to Dir unless it is already absolute.
type Fixture struct {
	t   *testing.T
	Dir string
}

// NewFixture creates a fixture rooted in a fresh temporary directory
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	return &Fixture{t: t, Dir: t.TempDir()}
}

// Path resolves rel against the fixture directory
func (f *Fixture) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(f.Dir, rel)
}

// WriteFile creates a file (and its parent directories) with content
func (f *Fixture) WriteFile(rel, content string) string {
	f.t.Helper()

	path := f.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		f.t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		f.t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// WriteYAML encodes value as block-style YAML into rel
func (f *Fixture) WriteYAML(rel string, value interface{}) string {
	f.t.Helper()

	data, err := yaml.Marshal(value)
	if err != nil {
		f.t.Fatalf("failed to marshal fixture %s: %v", rel, err)
	}
	return f.WriteFile(rel, string(data))
}

// Mkdir creates a directory tree
func (f *Fixture) Mkdir(rel string) string {
	f.t.Helper()

	path := f.Path(rel)
	if err := os.MkdirAll(path, 0755); err != nil {
		f.t.Fatalf("failed to create %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of a file, failing the test if it is unreadable
func (f *Fixture) ReadFile(rel string) string {
	f.t.Helper()

	data, err := os.ReadFile(f.Path(rel))
	if err != nil {
		f.t.Fatalf("failed to read %s: %v", rel, err)
	}
	return string(data)
}

// ReadYAML decodes a YAML (or JSON) file into the document value set
func (f *Fixture) ReadYAML(rel string) map[string]interface{} {
	f.t.Helper()

	var raw interface{}
	if err := yaml.Unmarshal([]byte(f.ReadFile(rel)), &raw); err != nil {
		f.t.Fatalf("failed to parse %s: %v", rel, err)
	}
	if raw == nil {
		return map[string]interface{}{}
	}

	doc, ok := types.NormalizeValue(raw).(map[string]interface{})
	if !ok {
		f.t.Fatalf("expected %s to hold a mapping, got %s", rel, types.KindOf(raw))
	}
	return doc
}

// AssertFileExists asserts that a file exists
func (f *Fixture) AssertFileExists(rel string) {
	f.t.Helper()
	if _, err := os.Stat(f.Path(rel)); err != nil {
		f.t.Errorf("Expected file '%s' to exist, but it doesn't", rel)
	}
}

// AssertFileNotExists asserts that a file does not exist
func (f *Fixture) AssertFileNotExists(rel string) {
	f.t.Helper()
	if _, err := os.Stat(f.Path(rel)); err == nil {
		f.t.Errorf("Expected file '%s' to not exist, but it does", rel)
	}
}

// AssertFileContent asserts that a file has specific content
func (f *Fixture) AssertFileContent(rel, expected string) {
	f.t.Helper()
	if got := f.ReadFile(rel); got != expected {
		f.t.Errorf("Expected file '%s' to have content '%s', but got '%s'", rel, expected, got)
	}
}

// AssertFileMode asserts the permission bits of a file
func (f *Fixture) AssertFileMode(rel string, expected os.FileMode) {
	f.t.Helper()
	info, err := os.Stat(f.Path(rel))
	if err != nil {
		f.t.Fatalf("failed to stat %s: %v", rel, err)
	}
	if info.Mode().Perm() != expected {
		f.t.Errorf("Expected file '%s' to have mode %v, but got %v", rel, expected, info.Mode().Perm())
	}
}

// ListenTCP opens a listener on a random loopback port and returns its
// host and port. The listener is closed when the test ends.
func ListenTCP(t *testing.T) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// ClosedPort returns a loopback port that nothing is listening on.
func ClosedPort(t *testing.T) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()
	return addr.IP.String(), addr.Port
}

// Lines splits output into non-empty lines.
func Lines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
