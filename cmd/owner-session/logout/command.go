package logout

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/passengerlk/owner-session/internal/business"
	"github.com/passengerlk/owner-session/internal/cmdutils"
	"github.com/passengerlk/owner-session/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommandArgs(
		"logout",
		"Sign out",
		"Tells the backend to end the session and removes the stored credentials.",
		buildInfo,
		cobra.NoArgs,
		cmdutils.RunAsJob,
		func(cmd *cobra.Command, _ []string) cmdutils.BusinessFunc {
			return func(ctx context.Context, cfg *config.Config) error {
				return business.LogoutMain(ctx, cfg, cmd.OutOrStdout())
			}
		},
	)
}
