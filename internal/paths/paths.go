// Package paths resolves where paizhu keeps its configuration, records,
// attachment files and export archives.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under platform locations.
const AppName = "paizhu"

// Directory names relative to the working directory or the data directory.
const (
	DefaultDataDirName    = ".paizhu-db"
	AttachmentsDirName    = "attachments"
	ExportDirName         = "exports"
	CacheDirName          = "cache"
	DefaultConfigFileName = "config.yaml"
	DefaultLogFileName    = "paizhu.log"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "PAIZHU_CONFIG_DIR"
	EnvDataDir   = "PAIZHU_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/paizhu (fallback ~/.config/paizhu)
// macOS:   ~/Library/Application Support/paizhu
// Windows: %APPDATA%/paizhu
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > PAIZHU_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > config value > PAIZHU_DATA_DIR env > $(CWD)/.paizhu-db.
func ResolveDataDir(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// Layout is the set of directories one device works in.
type Layout struct {
	DataDir        string
	AttachmentsDir string
	ExportDir      string
	CacheDir       string
}

// ResolveLayout fills the attachment, export and cache directories. Empty
// values default to fixed names under dataDir; relative values are made
// absolute against the working directory.
func ResolveLayout(dataDir, attachmentsDir, exportDir, cacheDir string) (Layout, error) {
	l := Layout{DataDir: dataDir}
	var err error
	if l.AttachmentsDir, err = under(dataDir, attachmentsDir, AttachmentsDirName); err != nil {
		return Layout{}, err
	}
	if l.ExportDir, err = under(dataDir, exportDir, ExportDirName); err != nil {
		return Layout{}, err
	}
	if l.CacheDir, err = under(dataDir, cacheDir, CacheDirName); err != nil {
		return Layout{}, err
	}
	return l, nil
}

func under(dataDir, value, name string) (string, error) {
	if value != "" {
		return filepath.Abs(value)
	}
	return filepath.Join(dataDir, name), nil
}
