// Package cli provides the cobra command-line interface. Commands are
// thin: they parse flags, call driving ports and format output. All
// wiring happens in cmd/lorekit.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/lorekit/lorekit/internal/core/ports/driven"
	"github.com/lorekit/lorekit/internal/core/ports/driving"
	"github.com/lorekit/lorekit/internal/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "lorekit",
	Short: "Local question answering over your own documents",
	Long: `Lorekit indexes local text documents and answers questions about
them using hybrid retrieval and a locally supervised inference runtime.
No document content ever leaves the machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.SetVerbose(verbose)
	},
}

// Services injected by cmd/lorekit before Execute.
var (
	indexerService   driving.Indexer
	retrieverService driving.Retriever
	assistantService driving.Assistant
	inferenceRuntime driven.InferenceRuntime
	configStore      driven.ConfigStore
)

// Services bundles the driving-side dependencies of the CLI.
type Services struct {
	Indexer   driving.Indexer
	Retriever driving.Retriever
	Assistant driving.Assistant
	Runtime   driven.InferenceRuntime
	Config    driven.ConfigStore
}

// SetServices injects the wired services.
func SetServices(s Services) {
	indexerService = s.Indexer
	retrieverService = s.Retriever
	assistantService = s.Assistant
	inferenceRuntime = s.Runtime
	configStore = s.Config
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
