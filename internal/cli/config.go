package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/paizhu/internal/logging"
	"github.com/mesh-intelligence/paizhu/internal/paths"
	"github.com/mesh-intelligence/paizhu/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "PAIZHU"

	cfgKeyBackend        = "backend"
	cfgKeyDataDir        = "data_dir"
	cfgKeyAttachmentsDir = "attachments_dir"
	cfgKeyExportDir      = "export_dir"
	cfgKeyCacheDir       = "cache_dir"
	cfgKeyUserID         = "user_id"
	cfgKeyLogLevel       = "log.level"
	cfgKeyLogFormat      = "log.format"
	cfgKeyLogFile        = "log.file"
	cfgKeyLogMaxSize     = "log.max_size_mb"
	cfgKeyLogMaxBackups  = "log.max_backups"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# paizhu configuration

# Storage backend: auto, sqlite or jsonl
backend: auto

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# Where attachment files, delivered archives and in-progress archives live.
# Each defaults to a directory under data_dir.
# attachments_dir:
# export_dir:
# cache_dir:

# Inspector account id stamped on new records
user_id: 1

log:
  level: info
  format: text
  # file: paizhu.log
  max_size_mb: 10
  max_backups: 3
`

// Settings is the resolved configuration of one invocation.
type Settings struct {
	Backend        string
	DataDir        string
	AttachmentsDir string
	ExportDir      string
	CacheDir       string
	UserID         int64
	Log            logging.Options
}

// loadConfig reads config.yaml from configDir using Viper. With
// writeDefault the directory and a commented default file are created when
// missing. PAIZHU_* environment variables override file values.
func loadConfig(configDir string, writeDefault bool) (*viper.Viper, error) {
	if writeDefault {
		if err := ensureDefaultConfigFile(configDir); err != nil {
			return nil, fmt.Errorf("ensure default config: %w", err)
		}
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendAuto)
	v.SetDefault(cfgKeyUserID, types.DefaultUserID)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyLogFormat, logging.FormatText)
	v.SetDefault(cfgKeyLogMaxSize, 10)
	v.SetDefault(cfgKeyLogMaxBackups, 3)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// settingsFrom validates the values read by Viper. A relative log file is
// placed in the config directory.
func settingsFrom(v *viper.Viper, configDir string) (Settings, error) {
	s := Settings{
		Backend:        v.GetString(cfgKeyBackend),
		DataDir:        v.GetString(cfgKeyDataDir),
		AttachmentsDir: v.GetString(cfgKeyAttachmentsDir),
		ExportDir:      v.GetString(cfgKeyExportDir),
		CacheDir:       v.GetString(cfgKeyCacheDir),
		UserID:         v.GetInt64(cfgKeyUserID),
		Log: logging.Options{
			Level:      v.GetString(cfgKeyLogLevel),
			Format:     v.GetString(cfgKeyLogFormat),
			File:       v.GetString(cfgKeyLogFile),
			MaxSizeMB:  v.GetInt(cfgKeyLogMaxSize),
			MaxBackups: v.GetInt(cfgKeyLogMaxBackups),
		},
	}
	if err := (types.Config{Backend: s.Backend, UserID: s.UserID}).Validate(); err != nil {
		return Settings{}, fmt.Errorf("config %s: %w", cfgKeyBackend, err)
	}
	if s.UserID < 0 {
		return Settings{}, fmt.Errorf("config %s must not be negative", cfgKeyUserID)
	}
	if s.Log.File != "" && !filepath.IsAbs(s.Log.File) {
		s.Log.File = filepath.Join(configDir, s.Log.File)
	}
	return s, nil
}

// ensureDefaultConfigFile creates the config directory and a default
// config.yaml if the file does not exist.
func ensureDefaultConfigFile(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(configDir, paths.DefaultConfigFileName)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
