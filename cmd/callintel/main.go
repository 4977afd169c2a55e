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

	"call-insights-go/internal/actionable"
	"call-insights-go/internal/aggregator"
	"call-insights-go/internal/app"
	"call-insights-go/internal/config"
	"call-insights-go/internal/dataset"
	"call-insights-go/internal/insights"
	"call-insights-go/internal/pipeline"
	"call-insights-go/internal/types"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "callintel",
		Short: "Financial call intelligence pipeline",
		Long:  "Transcribe, translate, intent-tag and summarize recorded financial calls.",
	}
	rootCmd.AddCommand(processCmd(), batchCmd(), schemaCmd(), versionCmd())
	return rootCmd
}

func processCmd() *cobra.Command {
	var recordPath, outPath, reqID string
	cmd := &cobra.Command{
		Use:   "process [audio-file]",
		Short: "Run one call through the pipeline and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (recordPath != "") {
				return fmt.Errorf("give either an audio file or --record")
			}
			a, err := build()
			if err != nil {
				return err
			}
			defer a.Close()

			var res *pipeline.Result
			if recordPath != "" {
				rec, err := readRecord(recordPath)
				if err != nil {
					return err
				}
				res, err = a.Processor.ProcessRecord(cmd.Context(), reqID, rec)
				if err != nil {
					return err
				}
			} else {
				res, err = a.Processor.ProcessFile(cmd.Context(), reqID, args[0])
				if err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), outPath, res)
		},
	}
	cmd.Flags().StringVar(&recordPath, "record", "", "Already transcribed call record (JSON)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the result here instead of stdout")
	cmd.Flags().StringVar(&reqID, "request-id", "", "Request id (default: new uuid)")
	return cmd
}

func batchCmd() *cobra.Command {
	var reportPath string
	cmd := &cobra.Command{
		Use:   "batch <manifest.xlsx>",
		Short: "Process every call in an xlsx manifest and write a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			calls, err := dataset.Load(args[0])
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}
			a, err := build()
			if err != nil {
				return err
			}
			defer a.Close()
			a.Log.WithField("calls", len(calls)).Info("batch started")

			outcomes := dataset.RunBatch(cmd.Context(), a.Processor, calls, a.Log)
			ins := aggregator.Aggregate(outcomes)
			card := actionable.Generate(ins)
			if err := dataset.WriteReport(reportPath, outcomes, ins, card); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), "", struct {
				Report     string                `json:"report"`
				Summary    aggregator.Insight    `json:"summary"`
				ActionCard actionable.ActionCard `json:"action_card"`
			}{reportPath, ins, card})
		},
	}
	cmd.Flags().StringVarP(&reportPath, "report", "r", "call_insights_report.xlsx", "Output xlsx report")
	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema generated insights must satisfy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := insights.Schema()
			if err != nil {
				return err
			}
			var v any
			if err := json.Unmarshal(s, &v); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), "", v)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func build() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Build(cfg)
}

func readRecord(path string) (*types.CallRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec types.CallRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &rec, nil
}

func writeJSON(stdout io.Writer, path string, v any) error {
	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
