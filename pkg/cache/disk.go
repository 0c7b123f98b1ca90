// Package cache holds parse tree stores for handlebars.Engine beyond the
// in-memory default.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

// Disk keeps one JSON file per key under a directory. Files are written
// atomically, so concurrent processes sharing the directory never observe a
// partial tree.
type Disk struct {
	dir    string
	prefix string
	suffix string
}

var _ handlebars.Cache = (*Disk)(nil)

// NewDisk creates dir if needed. Entry files are named prefix+key+suffix.
func NewDisk(dir, prefix, suffix string) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("disk cache: no path given")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("disk cache: could not create %s: %w", dir, err)
	}
	return &Disk{dir: dir, prefix: prefix, suffix: suffix}, nil
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, d.prefix+key+d.suffix)
}

// Get treats an unreadable or corrupt entry as a miss.
func (d *Disk) Get(key string) ([]*handlebars.Node, bool) {
	b, err := os.ReadFile(d.path(key))
	if err != nil {
		return nil, false
	}
	var tree []*handlebars.Node
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, false
	}
	return tree, true
}

func (d *Disk) Set(key string, tree []*handlebars.Node) error {
	b, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	path := d.path(key)
	tmp, err := os.CreateTemp(d.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Remove deletes the entry for key. A missing entry is not an error.
func (d *Disk) Remove(key string) error {
	err := os.Remove(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
