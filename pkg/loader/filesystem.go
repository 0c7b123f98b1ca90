package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultExtension is appended to names that do not already carry it.
const DefaultExtension = ".handlebars"

// Filesystem loads templates from one or more directory trees. The first
// tree holding a matching file wins, and a file is read once per loader.
type Filesystem struct {
	roots     []fs.FS
	extension string
	prefix    string

	mu        sync.Mutex
	templates map[string]string
}

type FilesystemOption func(*Filesystem)

// WithExtension overrides DefaultExtension. A leading dot is optional.
func WithExtension(ext string) FilesystemOption {
	return func(l *Filesystem) {
		l.extension = "." + strings.TrimLeft(ext, ".")
	}
}

// WithPrefix sets a prefix for the last path element, so "admin/list"
// with prefix "_" reads "admin/_list.handlebars".
func WithPrefix(prefix string) FilesystemOption {
	return func(l *Filesystem) { l.prefix = prefix }
}

// NewFilesystem returns a loader over the given directories. Every entry
// must be an existing directory.
func NewFilesystem(dirs []string, opts ...FilesystemOption) (*Filesystem, error) {
	if len(dirs) == 0 {
		return nil, errors.New("filesystem loader: no directories given")
	}
	roots := make([]fs.FS, 0, len(dirs))
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("filesystem loader: %w", err)
		}
		st, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("filesystem loader: %w", err)
		}
		if !st.IsDir() {
			return nil, fmt.Errorf("filesystem loader: base dir must be a directory: %s", abs)
		}
		roots = append(roots, os.DirFS(abs))
	}
	return NewFS(roots, opts...), nil
}

// NewFS returns a loader over arbitrary file systems, such as an embed.FS.
func NewFS(roots []fs.FS, opts ...FilesystemOption) *Filesystem {
	l := &Filesystem{
		roots:     roots,
		extension: DefaultExtension,
		templates: map[string]string{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Filesystem) Load(name string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.templates[name]; ok {
		return s, nil
	}
	file := l.fileName(name)
	for _, root := range l.roots {
		b, err := fs.ReadFile(root, file)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		l.templates[name] = string(b)
		return string(b), nil
	}
	return "", &NotFoundError{Name: name}
}

// fileName maps a template name to a slash separated path relative to a root.
func (l *Filesystem) fileName(name string) string {
	dir, file := path.Split(strings.TrimPrefix(name, "/"))
	if !strings.HasPrefix(file, l.prefix) {
		file = l.prefix + file
	}
	p := dir + file
	if !strings.HasSuffix(p, l.extension) {
		p += l.extension
	}
	return p
}
