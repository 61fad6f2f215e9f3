// ABOUTME: Thin CLI front end: flag/env/file config resolution, gzip sniffing, report rendering
// ABOUTME: All analysis logic lives in the root v8lens package; this just wires I/O

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prateek/v8lens"
	"github.com/prateek/v8lens/config"
	"github.com/prateek/v8lens/internal/snapshot"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		configPath    string
		outputPath    string
		outputFormat  string
		topK          int
		maxRounds     int
		maxPaths      int
		fanoutThresh  int
		includeHidden bool
		verbose       bool
	)

	v := viper.New()

	cmd := &cobra.Command{
		Use:           "analyze <path>",
		Short:         "Find wasted memory in a V8 heap snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			v.BindPFlag("output_path", cmd.Flags().Lookup("out"))
			v.BindPFlag("output_format", cmd.Flags().Lookup("format"))
			v.BindPFlag("top_k", cmd.Flags().Lookup("top"))
			v.BindPFlag("max_color_refinement_rounds", cmd.Flags().Lookup("max-rounds"))
			v.BindPFlag("max_retention_paths", cmd.Flags().Lookup("max-paths"))
			v.BindPFlag("shape_fanout_threshold", cmd.Flags().Lookup("fanout-threshold"))
			v.BindPFlag("include_hidden_classes", cmd.Flags().Lookup("include-hidden-classes"))
			v.Set("input_path", cmdArgs[0])

			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: time.Kitchen,
			}))

			return runAnalysis(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a .v8lens.yaml config file")
	cmd.Flags().StringVar(&outputPath, "out", "", "output file path (default: stdout)")
	cmd.Flags().StringVar(&outputFormat, "format", "text", "output format: text or structured")
	cmd.Flags().IntVar(&topK, "top", 10, "number of groups to report per category")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 6, "max color-refinement rounds")
	cmd.Flags().IntVar(&maxPaths, "max-paths", 1, "max node-disjoint retention paths per group")
	cmd.Flags().IntVar(&fanoutThresh, "fanout-threshold", 10, "distinct-shape count flagged as high fanout")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden-classes", false, "report duplicate groups of V8-internal hidden-class nodes too")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")

	root := &cobra.Command{Use: "v8lens", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(cmd)
	root.SetArgs(args)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		return exitCodeFor(err)
	}
	return 0
}

func runAnalysis(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	f, err := os.Open(cfg.InputPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.InputPath, err)
	}
	defer f.Close()

	rpt, err := v8lens.Run(ctx, f, cfg, v8lens.Options{
		Logger: logger,
		OnProgress: func(p snapshot.Progress) {
			logger.Info("parsing", "nodes", p.NodesDecoded, "edges", p.EdgesDecoded, "elapsed", p.Elapsed)
		},
	})
	if err != nil {
		return err
	}

	out := os.Stdout
	if cfg.OutputPath != "" {
		outFile, err := os.Create(cfg.OutputPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", cfg.OutputPath, err)
		}
		defer outFile.Close()
		out = outFile
	}

	if cfg.OutputFormat == "structured" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rpt)
	}

	fmt.Fprintf(out, "v8lens run %s\n", rpt.RunID)
	fmt.Fprintf(out, "  objects scanned:   %d\n", rpt.Summary.TotalObjects)
	fmt.Fprintf(out, "  duplicate groups:  %d\n", rpt.Summary.DuplicateGroups)
	fmt.Fprintf(out, "  total wasted:      %d bytes\n", rpt.Summary.TotalWasted)
	for _, w := range rpt.Warnings {
		fmt.Fprintf(out, "  warning: %s: %s\n", w.Kind, w.Detail)
	}
	return nil
}

func exitCodeFor(err error) int {
	var verr *v8lens.Error
	if errors.As(err, &verr) {
		switch verr.Kind {
		case v8lens.KindInputMalformed, v8lens.KindSchemaMismatch, v8lens.KindDanglingEdge:
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		case v8lens.KindIoFailure:
			fmt.Fprintln(os.Stderr, "error:", err)
			return 2
		default:
			fmt.Fprintln(os.Stderr, "error:", err)
			return 3
		}
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}
