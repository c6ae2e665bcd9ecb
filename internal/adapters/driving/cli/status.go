package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show inference runtime status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if inferenceRuntime == nil {
		return errors.New("runtime not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	status := inferenceRuntime.Status(ctx)

	cmd.Printf("State:     %s\n", status.State)
	cmd.Printf("Installed: %t\n", status.Installed)
	cmd.Printf("Running:   %t\n", status.Running)
	cmd.Printf("Healthy:   %t\n", status.Healthy)
	if status.Version != "" {
		cmd.Printf("Version:   %s\n", status.Version)
	}
	if len(status.Models) > 0 {
		cmd.Printf("Models:    %d available (see 'lorekit models')\n", len(status.Models))
	}
	return nil
}
