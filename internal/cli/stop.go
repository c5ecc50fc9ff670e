package cli

import (
	"github.com/spf13/cobra"
)

func NewStopCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the capture session",
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := deps.Client.Stop(cmd.Context())
			if err != nil {
				return err
			}
			return printReply(deps.out(), reply)
		},
	}

	return cmd
}
