package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	modelsPull string
	modelsUse  string
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List, download or switch inference models",
	Long: `Lists the models available on the local inference runtime. When the
runtime is down the last-known list is shown. Use --pull to download a
model with progress reporting, or --use to switch the active model.`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().StringVar(&modelsPull, "pull", "", "download the named model")
	modelsCmd.Flags().StringVar(&modelsUse, "use", "", "switch the active generation model")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	if inferenceRuntime == nil {
		return errors.New("runtime not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if modelsPull != "" {
		return pullModel(ctx, cmd, modelsPull)
	}
	if modelsUse != "" {
		return useModel(cmd, modelsUse)
	}

	status := inferenceRuntime.Status(ctx)
	if len(status.Models) == 0 {
		cmd.Println("No models available. Use 'lorekit models --pull <name>' to download one.")
		return nil
	}

	if !status.Healthy {
		cmd.Println("Runtime is down; showing last-known models:")
	}
	for _, model := range status.Models {
		size := float64(model.Size) / (1 << 30)
		if model.ParameterSize != "" {
			cmd.Printf("  %-24s %6.1f GiB  (%s)\n", model.Name, size, model.ParameterSize)
		} else {
			cmd.Printf("  %-24s %6.1f GiB\n", model.Name, size)
		}
	}
	return nil
}

func pullModel(ctx context.Context, cmd *cobra.Command, model string) error {
	if _, err := inferenceRuntime.EnsureReady(ctx); err != nil {
		return fmt.Errorf("inference runtime: %w", err)
	}

	progress, err := inferenceRuntime.PullModel(ctx, model)
	if err != nil {
		return fmt.Errorf("pull %s: %w", model, err)
	}

	for step := range progress {
		if step.Indeterminate {
			cmd.Printf("\r%-60s", step.Status)
		} else {
			cmd.Printf("\r%-40s %5.1f%%", step.Status, step.Fraction*100)
		}
	}
	cmd.Println()
	cmd.Printf("Model %s ready.\n", model)
	return nil
}

// useModel switches the active generation model for this process and
// persists the choice for future sessions.
func useModel(cmd *cobra.Command, model string) error {
	inferenceRuntime.SetModel(model)
	if configStore != nil {
		if err := configStore.SetRuntimeModel(model); err != nil {
			return fmt.Errorf("persist model choice: %w", err)
		}
	}
	cmd.Printf("Active model set to %s.\n", model)
	return nil
}
