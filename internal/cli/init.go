package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/paizhu/internal/paths"
)

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Backend        string    `yaml:"backend"`
	DataDir        string    `yaml:"data_dir,omitempty"`
	AttachmentsDir string    `yaml:"attachments_dir,omitempty"`
	ExportDir      string    `yaml:"export_dir,omitempty"`
	CacheDir       string    `yaml:"cache_dir,omitempty"`
	UserID         int64     `yaml:"user_id"`
	Log            logConfig `yaml:"log"`
}

type logConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

func (a *app) newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize paizhu storage",
		Long:  "Write config.yaml, create the data, attachment, export and cache directories,\nthen initialize the storage backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.yaml")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, force bool) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysErr(err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return sysErr(fmt.Errorf("create config directory: %w", err))
	}
	configPath := filepath.Join(configDir, paths.DefaultConfigFileName)
	if err := a.writeConfig(configPath, force); err != nil {
		return sysErr(fmt.Errorf("write config: %w", err))
	}

	for _, dir := range []string{a.layout.DataDir, a.layout.AttachmentsDir, a.layout.ExportDir, a.layout.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return sysErr(fmt.Errorf("create %s: %w", dir, err))
		}
	}
	s, err := a.openStore()
	if err != nil {
		return fail(fmt.Errorf("initialize storage: %w", err))
	}

	if a.flags.jsonMode {
		return printJSON(cmd, map[string]string{
			"config":  configPath,
			"dataDir": a.layout.DataDir,
			"backend": s.Backend(),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "paizhu initialized (%s backend)\nconfig: %s\ndata:   %s\n", s.Backend(), configPath, a.layout.DataDir)
	return nil
}

// writeConfig stores the effective settings as config.yaml. An existing
// file is kept unless force is set.
func (a *app) writeConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	s := a.settings
	cfg := configFile{
		Backend:        s.Backend,
		DataDir:        a.layout.DataDir,
		AttachmentsDir: s.AttachmentsDir,
		ExportDir:      s.ExportDir,
		CacheDir:       s.CacheDir,
		UserID:         s.UserID,
		Log: logConfig{
			Level:      s.Log.Level,
			Format:     s.Log.Format,
			File:       s.Log.File,
			MaxSizeMB:  s.Log.MaxSizeMB,
			MaxBackups: s.Log.MaxBackups,
		},
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte("# paizhu configuration\n"), data...), 0o644)
}
