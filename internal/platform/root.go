package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appName = "furrow"

// DefaultConfigPath returns <user config dir>/furrow/config.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, appName, "config.yaml"), nil
}

// DefaultDataDir returns the application-private directory holding the node store.
func DefaultDataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating data directory: %w", err)
	}
	return filepath.Join(dir, appName, "furrow_data"), nil
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
// Both build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}
	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolveDataDir picks the node directory. With forceTemp, paths outside the
// system temp directory are re-rooted under <tmp>/furrow-dev so development
// runs never touch the real replica.
func ResolveDataDir(userPath string, forceTemp bool) (string, error) {
	if !forceTemp {
		if userPath == "" {
			return DefaultDataDir()
		}
		return userPath, nil
	}

	clean := filepath.Clean(userPath)
	if userPath != "" {
		rel, err := filepath.Rel(os.TempDir(), clean)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return clean, nil
		}
	}

	sub := filepath.Base(clean)
	if userPath == "" || sub == "." || sub == string(os.PathSeparator) {
		sub = "default"
	}
	return filepath.Join(os.TempDir(), appName+"-dev", sub), nil
}
