// Command canalyzer runs content analysis passes described by a YAML file.
//
//	canalyzer fit -c movies.yaml
//	canalyzer inspect --dir out/contents m1
//	canalyzer frequencies -c movies.yaml --writer terms --id m1 --field plot
//	canalyzer stopwords -c movies.yaml --field plot
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cognicore/canalyzer/pkg/canalyzer/config"
	"github.com/cognicore/canalyzer/pkg/canalyzer/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "canalyzer",
	Short: "Turn raw item records into multi-representation contents",
	Long: `canalyzer reads raw records from a source, runs per-field technique
pipelines over them and writes the resulting contents to one or more
writer backends (memory, file, sqlite, index, badger).

Collection-based techniques such as tfidf and cooccurrence_graph are
refactored over the whole source before any content is produced.`,
	SilenceUsage: true,
}

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Run one analysis pass and print the report",
	Long: `Loads the configuration, refactors collection-based techniques, reads
the source once and commits one content per record to every writer.

The report is printed as JSON. With --report it is also written to a file.`,
	RunE: runFit,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [content-id]",
	Short: "Show contents written by a file writer",
	Long: `Without an id, prints the manifest of the last finalized pass in --dir.
With an id, prints that content as JSON. --jsonl prints every content of the
manifest as JSON lines.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

var frequenciesCmd = &cobra.Command{
	Use:   "frequencies",
	Short: "Print tf-idf weights of one content field from an index-capable writer",
	Long: `Queries the frequency index of a named writer. Persistent writers
(sqlite) answer from the last finalized pass. In-memory writers (index) need
--fit to run a pass first.`,
	RunE: runFrequencies,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "canalyzer.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override the configured log format (json, console)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Abort the pass after this long (0 = no limit)")

	fitCmd.Flags().String("report", "", "Also write the report JSON to this file")

	inspectCmd.Flags().String("dir", "", "File writer directory (required)")
	inspectCmd.Flags().Bool("jsonl", false, "Print every content as JSON lines")
	_ = inspectCmd.MarkFlagRequired("dir")

	frequenciesCmd.Flags().String("writer", "", "Writer name from the configuration (required)")
	frequenciesCmd.Flags().String("id", "", "Content id (required)")
	frequenciesCmd.Flags().String("field", "", "Field name (required)")
	frequenciesCmd.Flags().Int("top", 0, "Print only the top N terms (0 = all)")
	frequenciesCmd.Flags().Bool("fit", false, "Run a pass before querying")
	_ = frequenciesCmd.MarkFlagRequired("writer")
	_ = frequenciesCmd.MarkFlagRequired("id")
	_ = frequenciesCmd.MarkFlagRequired("field")

	rootCmd.AddCommand(fitCmd, inspectCmd, frequenciesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies the logging section,
// with command-line overrides on top.
func loadConfig() (*config.Assembly, *config.FileSpec, error) {
	asm, spec, err := config.Load(configPath, config.DefaultRegistry())
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", configPath, err)
	}
	lc := spec.Log
	if logLevel != "" {
		lc.Level = logLevel
	}
	if logFormat != "" {
		lc.Format = logFormat
	}
	logging.Init(lc)
	return asm, spec, nil
}
