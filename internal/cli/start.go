package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/johnquangdev/meetscribe/pkg/config"
)

func NewStartCmd(deps *Dependencies) *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start capturing the focused meeting tab",
		Long:  "Ask the capture agent to stream the focused tab's audio to the ingestion endpoint.\nThe endpoint is remembered and reused when --endpoint is omitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint == "" {
				endpoint = deps.Config.Endpoint
			}
			if endpoint == "" {
				return errors.New("no endpoint configured, pass --endpoint")
			}

			if endpoint != deps.Config.Endpoint {
				deps.Config.Endpoint = endpoint
				if err := config.SaveCtl(deps.Config, deps.ConfigPath); err != nil {
					return err
				}
			}

			reply, err := deps.Client.Start(cmd.Context(), endpoint)
			if err != nil {
				return err
			}
			return printReply(deps.out(), reply)
		},
	}

	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "Ingestion websocket endpoint (e.g. ws://localhost:8080/ws/ingest)")

	return cmd
}
