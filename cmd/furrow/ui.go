package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/internal/tui"
)

var uiJoin string

// uiCmd launches the terminal UI.
var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the terminal UI for the shared list.

Logs go to furrow.log next to the config file while the UI owns the terminal.

Controls:
  ↑/k, ↓/j - Navigate
  space    - Toggle done
  a / e / d - Add, edit, delete
  n        - Start a new list
  t        - Show the ticket for the current list
  J        - Join a list with a ticket
  q        - Quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return err
		}
		logFile, err := os.OpenFile(filepath.Join(filepath.Dir(configPath), "furrow.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer logFile.Close()
		setLogOutput(logFile)

		sink := &tui.Sink{}
		app, err := furrow.Setup(ctx, append(appOptions(), furrow.WithSink(sink))...)
		if err != nil {
			return err
		}
		defer closeApp(app)

		if uiJoin != "" {
			if err := app.SetTicket(ctx, uiJoin); err != nil {
				return err
			}
		}
		return tui.Run(ctx, app, sink)
	},
}

func init() {
	uiCmd.Flags().StringVar(&uiJoin, "join", "", "Join the list named by this ticket on start")
	rootCmd.AddCommand(uiCmd)
}
