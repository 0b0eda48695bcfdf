package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/pkg/core"
)

var serveJoin string

// serveCmd runs a headless peer.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a headless peer that keeps a list in sync",
	Long: `Run a peer without a terminal UI.
Without --join a new list is created. The list ticket is printed on stdout
so other peers can join. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := slog.Default()
		sink := core.SinkFunc(func(name string) {
			logger.Info("list changed", "notification", name)
		})

		app, err := furrow.Setup(ctx, append(appOptions(), furrow.WithSink(sink))...)
		if err != nil {
			return err
		}
		defer closeApp(app)

		if serveJoin != "" {
			if err := app.SetTicket(ctx, serveJoin); err != nil {
				return err
			}
		} else if _, err := app.NewList(ctx); err != nil {
			return err
		}

		ticket, err := app.GetTicket(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ticket)

		events, err := app.Events(ctx)
		if err != nil {
			return err
		}
		if err := events.Start(ctx); err != nil {
			return err
		}
		go func() {
			for ev := range events.Events() {
				logger.Debug("list event", "event", ev.String())
			}
		}()

		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	},
}

func closeApp(app *furrow.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveJoin, "join", "", "Join the list named by this ticket")
	rootCmd.AddCommand(serveCmd)
}
