package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/runstorm/internal/app"
	"github.com/dshills/runstorm/internal/config"
)

var (
	flagConfig   string
	flagLogLevel string
	flagLogFile  string
	flagPlain    bool
	flagNoWatch  bool
)

var rootCmd = &cobra.Command{
	Use:   "runstorm [file]",
	Short: "Run a source file with live, interactive output",
	Long: `runstorm runs a Python, JavaScript, Java or shell file and streams its
output into an interactive pane. Typed lines go to the program's stdin,
Ctrl+C interrupts it and a missing Python module is installed with pip
and the run retried once. Without a file, an interactive shell starts.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to a .toml or .yaml configuration file")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.Flags().StringVar(&flagLogFile, "log-file", "", "write diagnostic logs to this file")
	rootCmd.Flags().BoolVar(&flagPlain, "plain", false, "line-oriented output instead of the full-screen pane")
	rootCmd.Flags().BoolVar(&flagNoWatch, "no-watch", false, "do not reload the configuration file when it changes")
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfgPath, err := configPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Log.File = flagLogFile
	}

	logger, closer, err := app.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	opts := app.Options{Config: cfg, Logger: logger}
	if len(args) == 1 {
		opts.File = args[0]
	}
	if !flagNoWatch {
		opts.ConfigPath = cfgPath
	}

	application, err := app.New(opts)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	stdinTTY := term.IsTerminal(int(os.Stdin.Fd()))
	if flagPlain || !stdinTTY || !term.IsTerminal(int(os.Stdout.Fd())) {
		interrupts := make(chan os.Signal, 1)
		signal.Notify(interrupts, os.Interrupt)
		defer signal.Stop(interrupts)

		return application.RunPlain(ctx, app.PlainIO{
			In:         os.Stdin,
			Out:        os.Stdout,
			Echo:       stdinTTY,
			Interrupts: interrupts,
		})
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create terminal: %w", err)
	}
	return application.RunConsole(ctx, screen)
}

// configPath returns the --config flag, or the per-user file when it
// exists, or "" for defaults only.
func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	path, err := config.DefaultPath()
	if err != nil {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}
