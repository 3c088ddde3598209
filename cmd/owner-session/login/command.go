package login

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/passengerlk/owner-session/internal/business"
	"github.com/passengerlk/owner-session/internal/cmdutils"
	"github.com/passengerlk/owner-session/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommandArgs(
		"login <phone-number>",
		"Request a sign-in OTP",
		"Resumes the stored session when its refresh credential is still accepted. Otherwise asks the backend to send an OTP to the 10-digit phone number.",
		buildInfo,
		cobra.ExactArgs(1),
		cmdutils.RunAsJob,
		func(cmd *cobra.Command, args []string) cmdutils.BusinessFunc {
			return func(ctx context.Context, cfg *config.Config) error {
				return business.LoginMain(ctx, cfg, args[0], cmd.OutOrStdout())
			}
		},
	)
}
