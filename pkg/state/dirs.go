package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths is the on-disk layout of a replica directory.
type Paths struct {
	Root  string
	Store string // pebble data
	Logs  string
	Tmp   string
}

func PathsFor(root string) Paths {
	root = filepath.Clean(strings.TrimSpace(root))
	return Paths{
		Root:  root,
		Store: filepath.Join(root, "store"),
		Logs:  filepath.Join(root, "logs"),
		Tmp:   filepath.Join(root, "tmp"),
	}
}

// EnsureDirs creates the layout under root. Every directory must be a real,
// writable directory; symlinks are refused.
func EnsureDirs(root string) (Paths, error) {
	if strings.TrimSpace(root) == "" {
		return Paths{}, fmt.Errorf("replica directory is empty")
	}
	p := PathsFor(root)
	for _, dir := range []string{p.Root, p.Store, p.Logs, p.Tmp} {
		if err := ensureDir(dir); err != nil {
			return Paths{}, err
		}
	}
	return p, nil
}

func ensureDir(p string) error {
	if fi, err := os.Lstat(p); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("path is a symlink: %s", p)
		}
		if !fi.IsDir() {
			return fmt.Errorf("path exists and is not a directory: %s", p)
		}
	}
	if err := os.MkdirAll(p, 0o700); err != nil {
		return fmt.Errorf("cannot create path %s: %w", p, err)
	}
	tmp, err := os.CreateTemp(p, ".validate-*")
	if err != nil {
		return fmt.Errorf("path not writable: %s: %w", p, err)
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())
	return nil
}
