package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/cognicore/canalyzer/pkg/canalyzer"
	"github.com/cognicore/canalyzer/pkg/canalyzer/logging"
)

// commandContext is cancelled on SIGINT/SIGTERM and after --timeout.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

func runFit(cmd *cobra.Command, args []string) error {
	asm, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer asm.Close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	a := canalyzer.New(asm.Config, canalyzer.WithLogger(logging.Component("analyzer")))
	report, fitErr := a.Fit(ctx)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if path, _ := cmd.Flags().GetString("report"); path != "" {
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return fitErr
}
