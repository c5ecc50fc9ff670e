package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func NewStatusCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show coordinator and worker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := deps.Client.Status(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(deps.out()).Encode(status)
		},
	}

	return cmd
}
