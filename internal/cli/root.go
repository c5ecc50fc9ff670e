// Package cli implements the capturectl commands. It only relays commands to
// the capture agent and prints its replies.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnquangdev/meetscribe/internal/capture"
	"github.com/johnquangdev/meetscribe/pkg/config"
)

// AgentClient talks to the capture agent's control listener
type AgentClient interface {
	Start(ctx context.Context, endpoint string) (capture.Reply, error)
	Stop(ctx context.Context) (capture.Reply, error)
	Status(ctx context.Context) (capture.Status, error)
}

type Dependencies struct {
	Client     AgentClient
	Config     *config.CtlConfig
	ConfigPath string
	Out        io.Writer
}

func (d *Dependencies) out() io.Writer {
	if d.Out == nil {
		return os.Stdout
	}
	return d.Out
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "capturectl",
		Short:         "Control tab audio capture",
		Long:          "Start and stop streaming the focused meeting tab's audio to a meetscribe ingestion endpoint.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewStartCmd(deps))
	rootCmd.AddCommand(NewStopCmd(deps))
	rootCmd.AddCommand(NewStatusCmd(deps))

	return rootCmd
}

// printReply writes the agent reply and turns a failed one into an error
func printReply(w io.Writer, reply capture.Reply) error {
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		return err
	}
	if !reply.OK {
		return errors.New(reply.Error)
	}
	return nil
}
