// Command formvalidate validates form models against JSON Schema documents
// from the command line.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose   bool
	timeout   time.Duration
	allowHTTP bool

	logger = zap.NewNop()
)

// errInvalid makes the process exit with status 1 after the report has been
// printed.
var errInvalid = errors.New("model is invalid")

var rootCmd = &cobra.Command{
	Use:   "formvalidate",
	Short: "Validate form models against JSON Schema documents",
	Long: `formvalidate merges a frontend JSON Schema with an optional backend
fragment, prunes conditional branches against the model and reports one
error message per field.

Schemas may be JSON or YAML files, http(s) URLs (with --http) or the request
body of an OpenAPI 3 operation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		built, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = built
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for loading schemas")
	rootCmd.PersistentFlags().BoolVar(&allowHTTP, "http", false, "Allow loading schemas from http(s) URLs")

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newSkeletonCmd())
	rootCmd.AddCommand(newFillCmd())
	rootCmd.AddCommand(newCheckSchemaCmd())
	rootCmd.AddCommand(newOperationsCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
