package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed corpus",
	Long: `Retrieves relevant chunks from the indexed corpus, feeds them to the
local model and streams the answer. The inference runtime is started
automatically if it is installed but not running.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	if assistantService == nil || inferenceRuntime == nil {
		return errors.New("assistant not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := inferenceRuntime.EnsureReady(ctx); err != nil {
		return fmt.Errorf("inference runtime: %w", err)
	}

	if indexerService != nil {
		// The lexical index lives in memory and must be rebuilt from
		// the chunk store on every process start.
		if err := indexerService.RebuildLexical(ctx); err != nil {
			return fmt.Errorf("rebuild lexical index: %w", err)
		}
	}

	answer, err := assistantService.Ask(ctx, question, func(token string) {
		cmd.Print(token)
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	cmd.Println()

	if len(answer.ContextSources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, source := range answer.ContextSources {
			cmd.Printf("  - %s\n", source)
		}
	}
	if answer.Degraded {
		cmd.Println()
		cmd.Println("Note: answer produced in degraded mode (reduced retrieval quality).")
	}
	return nil
}
