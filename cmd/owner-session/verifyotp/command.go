package verifyotp

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/passengerlk/owner-session/internal/business"
	"github.com/passengerlk/owner-session/internal/cmdutils"
	"github.com/passengerlk/owner-session/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommandArgs(
		"verify-otp <code>",
		"Complete sign-in with the OTP",
		"Verifies the 6-digit OTP for the phone number given to login and stores the credential pair.",
		buildInfo,
		cobra.ExactArgs(1),
		cmdutils.RunAsJob,
		func(cmd *cobra.Command, args []string) cmdutils.BusinessFunc {
			return func(ctx context.Context, cfg *config.Config) error {
				return business.VerifyOTPMain(ctx, cfg, args[0], cmd.OutOrStdout())
			}
		},
	)
}
