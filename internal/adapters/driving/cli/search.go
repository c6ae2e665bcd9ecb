package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the indexed corpus without generating an answer",
	Long: `Runs hybrid retrieval (semantic + lexical) and prints the ranked
chunks with their sources and scores. Useful for inspecting what the
assistant would be given as context.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if retrieverService == nil || indexerService == nil {
		return errors.New("retriever not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := indexerService.RebuildLexical(ctx); err != nil {
		return fmt.Errorf("rebuild lexical index: %w", err)
	}

	results, err := retrieverService.Retrieve(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	for i, r := range results {
		snippet := r.Chunk.Content
		if len(snippet) > 160 {
			snippet = snippet[:160] + "..."
		}
		cmd.Printf("[%d] %s (score %.3f, %s)\n    %s\n", i+1, r.DocumentTitle, r.Score, r.Source, snippet)
	}
	return nil
}
