// Package paths decides where a node keeps its files on disk.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appName = "routing-node"

	// EnvDataDir overrides the per-user default when no directory is given
	// on the command line.
	EnvDataDir = "ROUTING_NODE_DATA"
)

// Layout is a resolved data directory.
type Layout struct {
	Root string
}

// Resolve picks the data directory from, in order: dir, $ROUTING_NODE_DATA
// and the per-user config directory. A leading "~" is expanded.
func Resolve(dir string) Layout {
	if dir == "" {
		dir = os.Getenv(EnvDataDir)
	}
	if dir == "" {
		dir = userDefault()
	}
	return Layout{Root: filepath.Clean(expandHome(dir))}
}

func userDefault() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, appName)
	}
	return "." + appName
}

func expandHome(dir string) string {
	if dir != "~" && !strings.HasPrefix(dir, "~"+string(filepath.Separator)) {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return dir
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~"))
}

// Ensure creates the root, readable by the owner only since it holds the
// contact book.
func (l Layout) Ensure() error {
	return os.MkdirAll(l.Root, 0o700)
}

// ContactsDB is the bbolt file holding known peer endpoints.
func (l Layout) ContactsDB() string {
	return filepath.Join(l.Root, "contacts.db")
}
