package refresh

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/passengerlk/owner-session/internal/business"
	"github.com/passengerlk/owner-session/internal/cmdutils"
	"github.com/passengerlk/owner-session/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommandArgs(
		"refresh",
		"Rotate the stored credentials",
		"Exchanges the stored refresh credential for a new pair.",
		buildInfo,
		cobra.NoArgs,
		cmdutils.RunAsJob,
		func(cmd *cobra.Command, _ []string) cmdutils.BusinessFunc {
			return func(ctx context.Context, cfg *config.Config) error {
				return business.RefreshMain(ctx, cfg, cmd.OutOrStdout())
			}
		},
	)
}
