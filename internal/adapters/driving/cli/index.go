package cli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lorekit/lorekit/internal/core/domain"
)

var indexCmd = &cobra.Command{
	Use:   "index [file|directory]",
	Short: "Index text documents into the local corpus",
	Long: `Reads plain-text or markdown files, splits them into chunks, embeds
them and stores everything locally. Re-indexing unchanged files is a
no-op: document versions are derived from content.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

// indexableExtensions are the file types ingested from a directory.
var indexableExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := args[0]

	if indexerService == nil {
		return errors.New("indexer not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	var files []string
	if info.IsDir() {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && indexableExtensions[strings.ToLower(filepath.Ext(p))] {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
	} else {
		files = []string{path}
	}

	if len(files) == 0 {
		cmd.Println("No indexable files found.")
		return nil
	}

	indexed, skipped := 0, 0
	for _, file := range files {
		switch err := indexFile(ctx, file); {
		case errors.Is(err, domain.ErrUnchangedVersion):
			skipped++
		case err != nil:
			return fmt.Errorf("index %s: %w", file, err)
		default:
			indexed++
		}
	}

	cmd.Printf("Indexed %d document(s), %d unchanged.\n", indexed, skipped)
	return nil
}

func indexFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	// Content-derived version: unchanged files short-circuit inside
	// the indexer.
	sum := sha256.Sum256(content)

	return indexerService.Ingest(ctx, domain.Document{
		ID:        abs,
		Title:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Content:   string(content),
		Version:   hex.EncodeToString(sum[:8]),
		UpdatedAt: info.ModTime().UTC(),
	})
}
