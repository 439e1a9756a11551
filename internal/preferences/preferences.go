// Package preferences persists small string settings across restarts.
package preferences

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Keys used by the scheduler.
const (
	KeyOfflineMode      = "offline_mode"
	KeyFirstRunComplete = "first_run_complete"
	KeyAppVersion       = "app_version"
)

// Store reads and writes preference values.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// File keeps all values in one JSON document read and written through a
// private viper instance. Every call re-reads the file; writes replace it
// atomically.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a File backed by path. The file is created on first Set.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file.
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.load()
	if err != nil {
		return "", false, err
	}
	if !v.IsSet(key) {
		return "", false, nil
	}
	return v.GetString(key), true, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.load()
	if err != nil {
		return err
	}
	values := v.AllSettings()
	values[key] = value
	return f.save(values)
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.load()
	if err != nil {
		return err
	}
	if !v.IsSet(key) {
		return nil
	}
	values := v.AllSettings()
	delete(values, key)
	return f.save(values)
}

func (f *File) load() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("json")

	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.Size() == 0) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("decode preferences %s: %w", f.path, err)
	}
	return v, nil
}

func (f *File) save(values map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create preferences directory: %w", err)
	}

	w := viper.New()
	w.SetConfigType("json")
	for k, val := range values {
		w.Set(k, val)
	}

	ext := filepath.Ext(f.path)
	tmp := strings.TrimSuffix(f.path, ext) + ".tmp.json"
	if err := w.WriteConfigAs(tmp); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}

// Memory is an in-process Store for hosts without a writable disk.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
