package status

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/passengerlk/owner-session/internal/business"
	"github.com/passengerlk/owner-session/internal/cmdutils"
	"github.com/passengerlk/owner-session/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommandArgs(
		"status",
		"Show the stored credentials",
		"Prints the claims of the stored tokens as YAML. Signatures are not verified.",
		buildInfo,
		cobra.NoArgs,
		cmdutils.RunAsJob,
		func(cmd *cobra.Command, _ []string) cmdutils.BusinessFunc {
			return func(ctx context.Context, cfg *config.Config) error {
				return business.StatusMain(ctx, cfg, cmd.OutOrStdout())
			}
		},
	)
}
