// Package files manages the app-private file area where video media,
// thumbnails and scratch files live.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Area is one of the top-level directories under the root.
type Area string

// Known areas.
const (
	AreaVideos     Area = "videos"
	AreaThumbnails Area = "thumbnails"
	AreaTemp       Area = "temp"
)

// Areas lists every known area.
var Areas = []Area{AreaVideos, AreaThumbnails, AreaTemp}

// Valid reports whether a is a known area.
func (a Area) Valid() bool {
	for _, known := range Areas {
		if a == known {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidPath is returned for paths outside the root or a known area.
	ErrInvalidPath = errors.New("path outside the file area")

	// ErrUnknownArea is returned for an area name that is not one of Areas.
	ErrUnknownArea = errors.New("unknown file area")
)

// FileAreaError reports a failed file operation and the path it touched.
type FileAreaError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileAreaError) Error() string {
	return fmt.Sprintf("file area %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAreaError) Unwrap() error {
	return e.Err
}

func fail(op, path string, err error) error {
	return &FileAreaError{Op: op, Path: path, Err: err}
}

// Entry describes one file in an area.
type Entry struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithOpener replaces the platform opener used by OpenExternally.
func WithOpener(o Opener) Option {
	return func(m *Manager) {
		m.opener = o
	}
}

// Manager scopes every operation to one root directory.
type Manager struct {
	root   string
	opener Opener
}

// NewManager creates a Manager rooted at root. The directory is created by Init.
func NewManager(root string, opts ...Option) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fail("resolve root", root, err)
	}

	m := &Manager{
		root:   abs,
		opener: CommandOpener{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Root returns the absolute root directory.
func (m *Manager) Root() string {
	return m.root
}

// Init creates every area.
func (m *Manager) Init() error {
	for _, area := range Areas {
		if err := m.EnsureArea(area); err != nil {
			return err
		}
	}
	return nil
}

// EnsureArea creates the area directory if it does not exist.
func (m *Manager) EnsureArea(area Area) error {
	if !area.Valid() {
		return fail("ensure area", string(area), ErrUnknownArea)
	}
	dir := filepath.Join(m.root, string(area))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail("ensure area", dir, err)
	}
	return nil
}

// Logical normalizes path to "<area>/<name>". Absolute paths and file://
// URIs under the root are accepted.
func (m *Manager) Logical(path string) (string, error) {
	p := path
	if strings.HasPrefix(p, "file://") {
		u, err := url.Parse(p)
		if err != nil {
			return "", fail("resolve", path, ErrInvalidPath)
		}
		p = filepath.FromSlash(u.Path)
	}

	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(m.root, p)
		if err != nil {
			return "", fail("resolve", path, ErrInvalidPath)
		}
		p = rel
	}

	p = filepath.ToSlash(filepath.Clean(p))
	if p == "." || p == ".." || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") {
		return "", fail("resolve", path, ErrInvalidPath)
	}

	area, name, ok := strings.Cut(p, "/")
	if !Area(area).Valid() {
		return "", fail("resolve", path, ErrUnknownArea)
	}
	if !ok || name == "" {
		return "", fail("resolve", path, ErrInvalidPath)
	}
	return p, nil
}

// AbsPath returns the absolute filesystem path for a logical path.
func (m *Manager) AbsPath(path string) (string, error) {
	logical, err := m.Logical(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.root, filepath.FromSlash(logical)), nil
}

// IsManaged reports whether path already lies inside a known area.
func (m *Manager) IsManaged(path string) bool {
	_, err := m.Logical(path)
	return err == nil
}

// Write stores r at path, creating its area, and returns the file's URI.
// Content is written to a sibling temp file and renamed into place.
func (m *Manager) Write(path string, r io.Reader) (string, error) {
	abs, err := m.AbsPath(path)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fail("write", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", fail("write", path, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fail("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fail("write", path, err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		os.Remove(tmpName)
		return "", fail("write", path, err)
	}

	return fileURI(abs), nil
}

// Read returns the content at path.
func (m *Manager) Read(path string) ([]byte, error) {
	abs, err := m.AbsPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fail("read", path, err)
	}
	return data, nil
}

// Delete removes the file at path. A missing file is not an error.
func (m *Manager) Delete(path string) error {
	abs, err := m.AbsPath(path)
	if err != nil {
		return err
	}

	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fail("delete", path, err)
	}
	return nil
}

// Exists reports whether a file is present at path.
func (m *Manager) Exists(path string) (bool, error) {
	abs, err := m.AbsPath(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(abs)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fail("stat", path, err)
	}
}

// Size returns the size in bytes of the file at path.
func (m *Manager) Size(path string) (int64, error) {
	abs, err := m.AbsPath(path)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return 0, fail("stat", path, err)
	}
	return info.Size(), nil
}

// List returns the files in area sorted by name. A missing area is empty.
func (m *Manager) List(area Area) ([]Entry, error) {
	if !area.Valid() {
		return nil, fail("list", string(area), ErrUnknownArea)
	}

	dir := filepath.Join(m.root, string(area))
	dirEntries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fail("list", dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".partial-") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fail("list", filepath.Join(dir, de.Name()), err)
		}
		entries = append(entries, Entry{
			Path:    string(area) + "/" + de.Name(),
			Name:    de.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ResolveURI returns a file:// URI for path.
func (m *Manager) ResolveURI(path string) (string, error) {
	abs, err := m.AbsPath(path)
	if err != nil {
		return "", err
	}
	return fileURI(abs), nil
}

// OpenExternally hands the file to the platform's default application.
func (m *Manager) OpenExternally(ctx context.Context, path, mimeType string) error {
	abs, err := m.AbsPath(path)
	if err != nil {
		return err
	}

	if err := m.opener.Open(ctx, abs, mimeType); err != nil {
		return fail("open", path, err)
	}
	return nil
}

// NewName returns a fresh logical path in area with the given extension.
func (m *Manager) NewName(area Area, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return string(area) + "/" + uuid.NewString() + ext
}

// TempName returns a fresh logical path in the temp area.
func (m *Manager) TempName(ext string) string {
	return m.NewName(AreaTemp, ext)
}

// Import brings src into area. A path already inside a known area is used
// as-is, except that temp files are moved into area; anything else is copied
// under a new name. It returns the logical path and the file size.
func (m *Manager) Import(area Area, src string) (string, int64, error) {
	if logical, err := m.Logical(src); err == nil {
		if area != AreaTemp && strings.HasPrefix(logical, string(AreaTemp)+"/") {
			if logical, err = m.promote(area, logical); err != nil {
				return "", 0, err
			}
		}
		size, err := m.Size(logical)
		if err != nil {
			return "", 0, err
		}
		return logical, size, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", 0, fail("import", src, err)
	}
	defer in.Close()

	logical := m.NewName(area, filepath.Ext(src))
	if _, err := m.Write(logical, in); err != nil {
		return "", 0, err
	}

	size, err := m.Size(logical)
	if err != nil {
		return "", 0, err
	}

	logger.Log.Debug("Imported file into area",
		zap.String("source", src),
		zap.String("path", logical),
		zap.Int64("size", size),
	)
	return logical, size, nil
}

// Copy duplicates the managed file at path into area under a new name and
// returns the copy's logical path and size.
func (m *Manager) Copy(area Area, path string) (string, int64, error) {
	abs, err := m.AbsPath(path)
	if err != nil {
		return "", 0, err
	}

	in, err := os.Open(abs)
	if err != nil {
		return "", 0, fail("copy", path, err)
	}
	defer in.Close()

	logical := m.NewName(area, filepath.Ext(abs))
	if _, err := m.Write(logical, in); err != nil {
		return "", 0, err
	}

	size, err := m.Size(logical)
	if err != nil {
		return "", 0, err
	}
	return logical, size, nil
}

// promote renames a temp file into area under a new name.
func (m *Manager) promote(area Area, logical string) (string, error) {
	if err := m.EnsureArea(area); err != nil {
		return "", err
	}
	target := m.NewName(area, filepath.Ext(logical))
	from := filepath.Join(m.root, filepath.FromSlash(logical))
	to := filepath.Join(m.root, filepath.FromSlash(target))
	if err := os.Rename(from, to); err != nil {
		return "", fail("import", logical, err)
	}
	return target, nil
}

// CleanTemp removes everything in the temp area.
func (m *Manager) CleanTemp() error {
	dir := filepath.Join(m.root, string(AreaTemp))
	if err := os.RemoveAll(dir); err != nil {
		return fail("clean", dir, err)
	}
	return m.EnsureArea(AreaTemp)
}

func fileURI(abs string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
