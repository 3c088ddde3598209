package migrate

import (
	"github.com/spf13/cobra"

	"github.com/passengerlk/owner-session/internal/business"
	"github.com/passengerlk/owner-session/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"Owner Session migrations",
		"Creates the credential tables used by the postgres store.",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}
