package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/pipeline"
	"github.com/cognicore/canalyzer/pkg/canalyzer/technique"
)

var stopwordsCmd = &cobra.Command{
	Use:   "stopwords",
	Short: "Suggest stopwords for a field from corpus statistics",
	Long: `Reads the source once with the preprocessing of the field's first
pipeline and lists tokens that occur in many records but associate with no
other token. Add them to the tokenizer stoplist to sharpen tf-idf and
co-occurrence output.`,
	RunE: runStopwords,
}

func init() {
	stopwordsCmd.Flags().String("field", "", "Field name (required)")
	stopwordsCmd.Flags().Float64("df", technique.DefaultStopwordThresholds().DFPercent, "Minimum document frequency, in percent")
	stopwordsCmd.Flags().Float64("npmi", technique.DefaultStopwordThresholds().MaxNPMI, "Maximum NPMI with any other token")
	_ = stopwordsCmd.MarkFlagRequired("field")
	rootCmd.AddCommand(stopwordsCmd)
}

func runStopwords(cmd *cobra.Command, args []string) error {
	field, _ := cmd.Flags().GetString("field")
	df, _ := cmd.Flags().GetFloat64("df")
	npmi, _ := cmd.Flags().GetFloat64("npmi")

	asm, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer asm.Close()

	var p *pipeline.Pipeline
	for _, f := range asm.Config.Fields {
		if f.Name == field {
			p = f.Pipelines[0]
		}
	}
	if p == nil {
		return fmt.Errorf("%w: field %q is not configured", internalerr.ErrNotFound, field)
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	g := technique.NewCooccurrenceGraph(0, 1)
	if err := g.Refactor(ctx, pipeline.NewCorpus(asm.Config.Source, field, p)); err != nil {
		return err
	}
	candidates, err := g.SuggestStopwords(field, technique.StopwordThresholds{DFPercent: df, MaxNPMI: npmi}, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, c := range candidates {
		fmt.Fprintf(out, "%s\tdf=%d (%.1f%%)\tmax_npmi=%.3f\tscore=%.3f\n", c.Token, c.DF, c.DFPercent, c.MaxNPMI, c.Score)
	}
	return nil
}
