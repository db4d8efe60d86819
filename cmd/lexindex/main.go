// Command lexindex indexes documents against a reference dictionary and
// prints analytics as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/japaniel/lexindex/pkg/config"
	"github.com/japaniel/lexindex/pkg/engine"
	"github.com/japaniel/lexindex/pkg/logger"
)

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries global flags and the engine opened for one invocation.
type app struct {
	configPath string
	dbPath     string
	logMode    string

	eng *engine.Engine
	log *logger.Logger
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	a := &app{}
	defer a.close()
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lexindex",
		Short:         "Lexical identity and indexing engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config (default $LEXINDEX_CONFIG or ./lexindex.yaml)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "sqlite database path, overrides config")
	root.PersistentFlags().StringVar(&a.logMode, "log", "", "log mode: dev, prod or nop, overrides config")

	root.AddCommand(
		a.importDictCmd(),
		a.remediateCmd(),
		a.ingestCmd(),
		a.documentsCmd(),
		a.purgeCmd(),
		a.wordlistCmd(),
		a.coverageCmd(),
		a.similarityCmd(),
		a.variantsCmd(),
		a.lemmasCmd(),
		a.difficultyCmd(),
		a.statusCmd(),
		a.statsCmd(),
	)
	return root
}

// open loads configuration and builds the engine. Commands call it first.
func (a *app) open(cmd *cobra.Command) (*engine.Engine, error) {
	if a.eng != nil {
		return a.eng, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.logMode != "" {
		cfg.Log.Mode = a.logMode
	}
	if a.log, err = logger.New(cfg.Log.Mode, cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if a.eng, err = engine.New(cmd.Context(), cfg, a.log); err != nil {
		return nil, err
	}
	return a.eng, nil
}

func (a *app) close() {
	if a.eng != nil {
		if err := a.eng.Close(); err != nil {
			a.log.Error("close database", "error", err)
		}
	}
	if a.log != nil {
		a.log.Sync()
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
