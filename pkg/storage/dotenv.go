package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
	"github.com/solarbot/solarbot/pkg/log"
)

// DotenvStore keeps values as KEY=value lines in an env file, the same file
// the process loads its settings from.
type DotenvStore struct {
	mu   sync.Mutex
	path string
}

func configuredDotenv() *DotenvStore {
	path := lflag.String("env-file", ".env", "Env file that message ids are written back to")

	d := &DotenvStore{}
	lflag.Do(func() {
		d.path = *path
	})
	return d
}

// NewDotenvStore returns a store backed by the env file at path.
func NewDotenvStore(path string) *DotenvStore {
	return &DotenvStore{path: path}
}

// Get returns the value of key in the env file. A missing file or key is
// not an error.
func (d *DotenvStore) Get(ctx context.Context, key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	env, err := godotenv.Read(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", d.path, err)
	}
	return env[key], nil
}

// Set rewrites the line for key, or appends one if key is absent. Every
// other line is kept as is and in order.
func (d *DotenvStore) Set(ctx context.Context, key, value string) error {
	if key == "" || strings.ContainsAny(key, "=\n") {
		return fmt.Errorf("invalid key %q", key)
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("invalid value for %s", key)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	existing, err := os.ReadFile(d.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", d.path, err)
	}

	updated := replaceLine(existing, key, value)
	if err := writeFileSync(d.path, updated); err != nil {
		return err
	}
	log.Ctx(ctx).DebugContext(ctx, "stored value in env file", slog.String("path", d.path), slog.String("key", key))
	return nil
}

// Close is a no-op.
func (d *DotenvStore) Close() error {
	return nil
}

func replaceLine(content []byte, key, value string) []byte {
	newLine := key + "=" + value

	var lines []string
	if len(content) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	}

	found := false
	for i, line := range lines {
		if lineKey(line) == key {
			lines[i] = newLine
			found = true
		}
	}
	if !found {
		lines = append(lines, newLine)
	}

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// lineKey returns the key assigned on an env file line, or an empty string
// for comments and blank lines.
func lineKey(line string) string {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	line = strings.TrimPrefix(line, "export ")
	k, _, ok := strings.Cut(line, "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(k)
}

// writeFileSync replaces path atomically so a crash never leaves a partial
// env file behind.
func writeFileSync(path string, data []byte) error {
	mode := fs.FileMode(0o600)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
