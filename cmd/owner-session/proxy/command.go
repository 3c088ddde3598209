package proxy

import (
	"github.com/spf13/cobra"

	"github.com/passengerlk/owner-session/internal/business"
	"github.com/passengerlk/owner-session/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"proxy",
		"Local authenticating proxy",
		"Forwards requests to the backend as the signed-in owner and redirects to the login page once the session is lost.",
		buildInfo,
		cmdutils.RunAsService,
		business.ProxyMain,
	)
}
