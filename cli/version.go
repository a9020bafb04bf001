package cli

import (
	"fmt"

	"github.com/liftwise/coachgate/engine/infra/monitoring"
	"github.com/spf13/cobra"
)

func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "coachgate %s (%s)\n", monitoring.Version, monitoring.CommitHash)
			return err
		},
	}
}
