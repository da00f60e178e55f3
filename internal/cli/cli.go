// Package cli builds the command line of a service executable: running it
// in the foreground, installing and controlling it, and the entry point the
// service control manager invokes.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"winsvc/internal/config"
	"winsvc/internal/logger"
	"winsvc/internal/scm"
	"winsvc/internal/service"
)

// Detail describes a service executable.
type Detail[C any] struct {
	// Name is the service identifier registered with the control manager.
	Name        string
	DisplayName string
	Description string

	Task    service.Task[C]
	Options []service.Option

	// Store holds the configuration of the installed service. Defaults to
	// config.DefaultStore().
	Store config.Store
}

func (d Detail[C]) store() config.Store {
	if d.Store != nil {
		return d.Store
	}
	return config.DefaultStore()
}

type logFlags struct {
	file   string
	filter string
}

func (f logFlags) config(console bool) logger.Config {
	cfg := logger.DefaultConfig()
	cfg.FilePath = f.file
	if f.filter != "" {
		cfg.Level = f.filter
	}
	cfg.Console = console
	return cfg
}

// NewRootCommand returns the command tree for d.
func NewRootCommand[C any](d Detail[C]) *cobra.Command {
	var logs logFlags

	root := &cobra.Command{
		Use:           filepath.Base(os.Args[0]),
		Short:         fmt.Sprintf("%s service", displayName(d)),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logs.file, "log-file", "", "path to write log to")
	root.PersistentFlags().StringVar(&logs.filter, "log-filter", "", "minimum level to log (debug, info, warn, error)")

	root.AddCommand(
		newRunCommand(d, &logs),
		newInstallCommand(d, &logs),
		newControlCommand("uninstall", "Uninstall the service", d.Name, &logs, (*scm.Manager).Uninstall),
		newControlCommand("start", "Start the previously installed service", d.Name, &logs, (*scm.Manager).Start),
		newControlCommand("stop", "Stop the previously installed and started service", d.Name, &logs, (*scm.Manager).Stop),
		newRunAsServiceCommand(d, &logs),
	)
	return root
}

// Execute runs the command line of d and exits the process on failure.
func Execute[C any](d Detail[C]) {
	root := NewRootCommand(d)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", root.Name(), err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func displayName[C any](d Detail[C]) string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Name
}

func newRunCommand[C any](d Detail[C], logs *logFlags) *cobra.Command {
	var (
		cfgFile string
		watch   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the service in the foreground",
		Long: "Run the service in this console until interrupted. SIGINT or SIGTERM\n" +
			"stops it; a second signal exits immediately.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logs.config(true)); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			host := service.NewConsoleHost()
			if watch {
				host.WatchPath = cfgFile
			}
			store := &config.FileStore{Path: cfgFile}
			return service.NewDispatcher(d.Name, host, store, d.Task, d.Options...).Serve()
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "service configuration file (JSON or YAML)")
	cmd.Flags().BoolVar(&watch, "watch", false, "restart the task when the configuration file changes")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newInstallCommand[C any](d Detail[C], logs *logFlags) *cobra.Command {
	var (
		cfgFile string
		display string
	)
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install as a service",
		Long: "Install this executable as an automatically started service and store\n" +
			"the configuration where the installed service loads it from.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logs.config(true)); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			cfg, err := config.Load[C](&config.FileStore{Path: cfgFile}, d.Name)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %w", err)
			}
			if display == "" {
				display = displayName(d)
			}

			m := scm.NewManager(d.store())
			err = m.Install(scm.Definition{
				Name:        d.Name,
				DisplayName: display,
				Description: d.Description,
				Log:         scm.LogFlags{File: logs.file, Filter: logs.filter},
				Config:      &cfg,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", d.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "service configuration file (JSON or YAML)")
	cmd.Flags().StringVar(&display, "display-name", "", "display name shown by the service manager")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newControlCommand(use, short, name string, logs *logFlags, op func(*scm.Manager, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logs.config(true)); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if err := op(scm.NewManager(nil), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s done\n", name, use)
			return nil
		},
	}
}

func newRunAsServiceCommand[C any](d Detail[C], logs *logFlags) *cobra.Command {
	return &cobra.Command{
		Use:    scm.RunAsServiceCommand,
		Short:  "Entry point used by the service control manager",
		Long:   "Invoked by the service control manager when the service starts.",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAsService(d, *logs)
		},
	}
}

func runAsService[C any](d Detail[C], logs logFlags) error {
	if service.IsService() {
		logger.SetServiceMode(true)
	}
	if err := logger.Init(logs.config(logs.file == "")); err != nil {
		err = fmt.Errorf("failed to initialize logger: %w", err)
		reportStartupError(d.Name, logs, err)
		return err
	}

	log := logger.WithComponent("main")
	log.Info().Str("service", d.Name).Msg("Starting service")

	dispatcher := service.NewDispatcher(d.Name, service.DefaultHost(), d.store(), d.Task, d.Options...)
	if err := dispatcher.Serve(); err != nil {
		log.Error().Err(err).Str("service", d.Name).Msg("Service exited with error")
		service.ReportSessionError(d.Name, err)
		return err
	}

	log.Info().Str("service", d.Name).Msg("Service exited")
	return nil
}

// reportStartupError records err where an operator can find it when the
// logger itself is unavailable.
func reportStartupError(name string, logs logFlags, err error) {
	service.ReportStartupError(name, err)
	service.WriteStartupErrorFile(startupErrorDir(logs), name, err)
}

func startupErrorDir(logs logFlags) string {
	if logs.file != "" {
		return filepath.Dir(logs.file)
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Dir(exe)
	}
	return os.TempDir()
}
