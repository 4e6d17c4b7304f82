// pmctl is the operator CLI for the private-markets intelligence pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pm-intelligence/internal/app"
	"pm-intelligence/internal/common/config"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/pkg/registry"
)

var (
	configFile string
	logLevel   string
	timeout    time.Duration
	jsonOutput bool
)

// Populated in PersistentPreRunE.
var (
	cfg *config.Config
	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pmctl",
	Short: "Operate the private-markets intelligence pipeline",
	Long: `pmctl talks directly to the knowledge graph and its supporting stores.

It answers natural-language questions, triggers relationship inference,
cross-validates claims, ingests CSV exports and inspects job workers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		log = logger.NewStructured(level, "console")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print machine-readable JSON")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(workersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withApp connects the stores for a single command and releases them after.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, log, app.Options{ConnectAttempts: 3, RetryDelay: time.Second})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}

func activity(taskType string) (registry.Activity, error) {
	reg, err := registry.Default()
	if err != nil {
		return registry.Activity{}, err
	}
	act, ok := reg.Lookup(taskType)
	if !ok {
		return registry.Activity{}, fmt.Errorf("task type %q not registered", taskType)
	}
	return act, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput returns the named file, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
