package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cognicore/canalyzer/pkg/canalyzer"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/logging"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
)

type termScore struct {
	term  string
	score float64
}

func runFrequencies(cmd *cobra.Command, args []string) error {
	writer, _ := cmd.Flags().GetString("writer")
	id, _ := cmd.Flags().GetString("id")
	field, _ := cmd.Flags().GetString("field")
	top, _ := cmd.Flags().GetInt("top")
	fit, _ := cmd.Flags().GetBool("fit")

	asm, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer asm.Close()

	backend, ok := asm.Writers[writer]
	if !ok {
		return fmt.Errorf("%w: no writer named %q", internalerr.ErrNotFound, writer)
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	var freqs map[string]float64
	if fit {
		a := canalyzer.New(asm.Config, canalyzer.WithLogger(logging.Component("analyzer")))
		if _, err := a.Fit(ctx); err != nil {
			return err
		}
		s, ok := a.Session(backend)
		if !ok {
			return fmt.Errorf("%w: writer %q is not used by any field", internalerr.ErrNotFound, writer)
		}
		freqs, err = s.Frequencies(ctx, id, field)
	} else {
		idx, ok := backend.(memory.FrequencyIndex)
		if !ok {
			return &internalerr.InterfaceError{Backend: backend.Name(), Op: "frequencies", Err: internalerr.ErrUnsupported}
		}
		freqs, err = idx.Frequencies(ctx, id, field)
	}
	if err != nil {
		return err
	}

	scores := make([]termScore, 0, len(freqs))
	for term, score := range freqs {
		scores = append(scores, termScore{term, score})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].term < scores[j].term
	})
	if top > 0 && len(scores) > top {
		scores = scores[:top]
	}
	out := cmd.OutOrStdout()
	for _, s := range scores {
		fmt.Fprintf(out, "%s\t%.6f\n", s.term, s.score)
	}
	return nil
}
