// Command lorekit is the local question-answering CLI. It wires the
// concrete adapters to the core services and hands control to cobra.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lorekit/lorekit/internal/adapters/driven/config/file"
	"github.com/lorekit/lorekit/internal/adapters/driven/storage/sqlite"
	"github.com/lorekit/lorekit/internal/adapters/driving/cli"
	"github.com/lorekit/lorekit/internal/chunker"
	"github.com/lorekit/lorekit/internal/core/services"
	"github.com/lorekit/lorekit/internal/embedding"
	"github.com/lorekit/lorekit/internal/lexical"
	"github.com/lorekit/lorekit/internal/runtime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewStore("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := configStore.Config()

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("opening chunk store: %w", err)
	}
	defer store.Close()

	supervisor := runtime.NewSupervisor(runtime.Config{
		BaseURL:    cfg.Runtime.BaseURL,
		Model:      cfg.Runtime.Model,
		EmbedModel: cfg.Runtime.EmbedModel,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = supervisor.Shutdown(ctx)
	}()

	embedder := embedding.New(supervisor, embedding.Config{})
	lexicalIndex := lexical.New()
	splitter := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.ChunkSize),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	)

	indexer := services.NewIndexerService(store, lexicalIndex, embedder, splitter)
	retriever, err := services.NewRetrieverService(store, lexicalIndex, embedder, cfg.RetrievalDomain())
	if err != nil {
		return fmt.Errorf("configuring retriever: %w", err)
	}
	assistant := services.NewAssistantService(retriever, supervisor)

	cli.SetServices(cli.Services{
		Indexer:   indexer,
		Retriever: retriever,
		Assistant: assistant,
		Runtime:   supervisor,
		Config:    configStore,
	})

	return cli.Execute()
}
