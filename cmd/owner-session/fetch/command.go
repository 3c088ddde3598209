package fetch

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/passengerlk/owner-session/internal/business"
	"github.com/passengerlk/owner-session/internal/cmdutils"
	"github.com/passengerlk/owner-session/internal/config"
)

func Cmd(buildInfo string) *cobra.Command {
	var (
		method  string
		data    string
		headers []string
	)

	cmd := cmdutils.CobraCommandArgs(
		"fetch <path-or-url>",
		"Perform an authenticated request",
		"Sends the request with the stored access credential. A rejected credential is refreshed once and the request repeated.",
		buildInfo,
		cobra.ExactArgs(1),
		cmdutils.RunAsJob,
		func(cmd *cobra.Command, args []string) cmdutils.BusinessFunc {
			return func(ctx context.Context, cfg *config.Config) error {
				return business.FetchMain(ctx, cfg, business.FetchRequest{
					Method:  method,
					Target:  args[0],
					Body:    data,
					Headers: headers,
					Out:     cmd.OutOrStdout(),
				})
			}
		},
	)

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header as 'Name: value'")

	return cmd
}
