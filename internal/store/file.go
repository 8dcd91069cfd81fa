package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// File keeps one key per line. The whole set is loaded on open and the file
// is rewritten sorted on every Add.
type File struct {
	path string

	mu   sync.Mutex
	keys map[string]struct{}
}

func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("state path is empty")
	}
	f := &File{path: path, keys: make(map[string]struct{})}

	fh, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}
	defer fh.Close()

	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if k := strings.TrimSpace(sc.Text()); k != "" {
			f.keys[k] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return f, nil
}

func (f *File) Has(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[key]
	return ok, nil
}

func (f *File) Add(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		f.keys[k] = struct{}{}
	}
	return f.flush()
}

func (f *File) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

// flush writes to a sibling temp file and renames it over the old one.
func (f *File) flush() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	lines := make([]string, 0, len(f.keys))
	for k := range f.keys {
		lines = append(lines, k)
	}
	sort.Strings(lines)

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".notified-*")
	if err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		w.WriteString(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func (f *File) Close() error { return nil }
