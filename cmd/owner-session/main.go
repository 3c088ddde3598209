package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/openkcm/common-sdk/pkg/utils"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/passengerlk/owner-session/cmd/owner-session/fetch"
	"github.com/passengerlk/owner-session/cmd/owner-session/login"
	"github.com/passengerlk/owner-session/cmd/owner-session/logout"
	"github.com/passengerlk/owner-session/cmd/owner-session/migrate"
	"github.com/passengerlk/owner-session/cmd/owner-session/proxy"
	"github.com/passengerlk/owner-session/cmd/owner-session/refresh"
	"github.com/passengerlk/owner-session/cmd/owner-session/status"
	"github.com/passengerlk/owner-session/cmd/owner-session/verifyotp"
)

var (
	// BuildInfo will be set by the build system
	BuildInfo = "{}"

	isVersionCmd     bool
	gracefulShutdown time.Duration
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Owner Session Version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		isVersionCmd = true

		value, err := utils.ExtractFromComplexValue(BuildInfo)
		if err != nil {
			return err
		}

		slog.InfoContext(cmd.Context(), value)

		return nil
	},
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner-session",
		Short: "Owner Session",
		Long:  "Signs a bus owner in to the passenger backend and performs requests with the owner's session, refreshing expired credentials once.",
	}

	cmd.PersistentFlags().DurationVar(&gracefulShutdown, "graceful-shutdown", 0, "wait before exiting after a service stops")

	cmd.AddCommand(
		versionCmd,
		login.Cmd(BuildInfo),
		verifyotp.Cmd(BuildInfo),
		refresh.Cmd(BuildInfo),
		fetch.Cmd(BuildInfo),
		status.Cmd(BuildInfo),
		logout.Cmd(BuildInfo),
		proxy.Cmd(BuildInfo),
		migrate.Cmd(BuildInfo),
	)

	return cmd
}

func execute() error {
	ctx, cancelOnSignal := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancelOnSignal()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		slogctx.Error(ctx, "command failed", "error", err)
		_, _ = fmt.Fprintln(os.Stderr, err)

		return err
	}

	if !isVersionCmd && gracefulShutdown > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "Graceful shutdown in %s\n", gracefulShutdown)
		time.Sleep(gracefulShutdown)
	}

	return nil
}

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
