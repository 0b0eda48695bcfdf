package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/internal/platform"
)

var (
	verbose    bool
	configPath string
	dataDir    string
	listenAddr string

	// logLevel is shared by every handler so config reloads apply everywhere.
	logLevel = new(slog.LevelVar)
	config   furrow.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "furrow",
	Short: "A shared to-do list that syncs directly between peers",
	Long: `Furrow keeps a to-do list replicated between devices.
Start a list, hand the ticket to someone else, and every change flows both ways.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			path, err := furrow.DefaultConfigPath()
			if err != nil {
				return err
			}
			configPath = path
		}
		cfg, err := furrow.LoadConfig(configPath)
		if err != nil {
			return err
		}
		config = cfg

		level, err := platform.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		if verbose {
			level = slog.LevelDebug
		}
		logLevel.Set(level)
		setLogOutput(os.Stderr)
		return nil
	},
}

// setLogOutput points the default logger at w.
func setLogOutput(w io.Writer) {
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, opts)))
}

// appOptions merges the config file with the command line flags.
func appOptions() []furrow.Option {
	opts := []furrow.Option{
		furrow.WithConfig(config),
		furrow.WithLogger(slog.Default()),
		furrow.WithDevSafety(true),
	}
	if dataDir != "" {
		opts = append(opts, furrow.WithDataDir(dataDir))
	}
	if listenAddr != "" {
		opts = append(opts, furrow.WithListenAddr(listenAddr))
	}
	if !verbose {
		opts = append(opts, furrow.WithConfigWatch(configPath, logLevel))
	}
	return opts
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is <user config dir>/furrow/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding the local replica")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "Address to accept peers on (host:port)")
}
