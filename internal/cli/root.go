// Package cli implements the paizhu command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/paizhu/internal/attachments"
	"github.com/mesh-intelligence/paizhu/internal/export"
	"github.com/mesh-intelligence/paizhu/internal/inspection"
	"github.com/mesh-intelligence/paizhu/internal/logging"
	"github.com/mesh-intelligence/paizhu/internal/paths"
	"github.com/mesh-intelligence/paizhu/pkg/paizhu"
	"github.com/mesh-intelligence/paizhu/pkg/store"
	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// app is the state shared by the commands of one invocation.
type app struct {
	flags    rootFlags
	settings Settings
	layout   paths.Layout
	logger   *slog.Logger
	logClose io.Closer
	store    types.Store
}

// NewRootCmd creates the top-level "paizhu" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{logger: logging.Discard()}

	root := &cobra.Command{
		Use:     "paizhu",
		Short:   "Offline inspection records for one tablet",
		Long:    "paizhu keeps daily, weekly, monthly and immediate inspection records with\ntheir attachment files, and packages pending work into sync archives.",
		Version: paizhu.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.paizhu-db)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(a.newInitCmd())
	root.AddCommand(a.newRecordCmd())
	root.AddCommand(a.newAttachmentsCmd())
	root.AddCommand(a.newPendingCmd())
	root.AddCommand(a.newExportCmd())
	root.AddCommand(a.newSettingsCmd())

	return root, a
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root, a := newRoot()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(context.Background())
	// PersistentPostRunE is skipped when a command fails.
	if cerr := a.close(); err == nil && cerr != nil {
		err = sysErr(cerr)
	}
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "paizhu:", err)
	return exitCode(err)
}

// setup resolves directories, loads config.yaml and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysErr(fmt.Errorf("resolve config dir: %w", err))
	}
	v, err := loadConfig(configDir, cmd.Name() != "init")
	if err != nil {
		return sysErr(err)
	}
	s, err := settingsFrom(v, configDir)
	if err != nil {
		return userErr(err)
	}

	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, s.DataDir)
	if err != nil {
		return sysErr(fmt.Errorf("resolve data dir: %w", err))
	}
	s.DataDir = dataDir
	layout, err := paths.ResolveLayout(dataDir, s.AttachmentsDir, s.ExportDir, s.CacheDir)
	if err != nil {
		return sysErr(fmt.Errorf("resolve directories: %w", err))
	}

	logger, closer, err := logging.New(s.Log, cmd.ErrOrStderr())
	if err != nil {
		return userErr(err)
	}
	a.settings = s
	a.layout = layout
	a.logger = logger
	a.logClose = closer
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Detach())
		a.store = nil
	}
	if a.logClose != nil {
		errs = append(errs, a.logClose.Close())
		a.logClose = nil
	}
	return errors.Join(errs...)
}

// openStore attaches the configured backend once per invocation.
func (a *app) openStore() (types.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.Open(types.Config{
		Backend: a.settings.Backend,
		DataDir: a.layout.DataDir,
		UserID:  a.settings.UserID,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func (a *app) files() *attachments.Manager {
	return attachments.NewManager(a.layout.AttachmentsDir, a.logger)
}

func (a *app) service() (*inspection.Service, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return inspection.NewService(s, a.files(), a.logger), nil
}

func (a *app) engine() (*export.Engine, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return export.NewEngine(s, a.layout.CacheDir, export.DirHandoff{Dir: a.layout.ExportDir}, a.logger), nil
}
