// ABOUTME: Root orchestrator package wiring the parser, analyzers, and report assembler
// ABOUTME: Run is the single entry point every caller (CLI, tests, embedders) uses

// Package v8lens analyzes V8 heap snapshots for wasted memory: duplicate
// objects, hidden-class fanout, and the retention paths that keep
// representative objects alive.
package v8lens

import (
	"context"
	"errors"
	"io"
	"log/slog"

	tozderrors "gitlab.com/tozd/go/errors"

	"github.com/prateek/v8lens/analysis"
	"github.com/prateek/v8lens/config"
	"github.com/prateek/v8lens/graph"
	"github.com/prateek/v8lens/internal/snapshot"
	"github.com/prateek/v8lens/report"
)

// Version is the semantic version of v8lens.
const Version = "0.1.0-dev"

// Kind classifies a failure from Run for exit-code mapping.
type Kind string

const (
	KindInputMalformed Kind = "input_malformed"
	KindSchemaMismatch Kind = "schema_mismatch"
	KindDanglingEdge   Kind = "dangling_edge"
	KindIoFailure      Kind = "io_failure"
	KindInternal       Kind = "internal"
)

// Error wraps a fatal failure with a stable Kind for exit-code mapping and
// a stack trace, via gitlab.com/tozd/go/errors, recorded where Run
// classified the failure.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.cause.Error() }

func (e *Error) Unwrap() error { return e.cause }

func classify(err error) *Error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, graph.ErrDanglingEdge):
		return &Error{Kind: KindDanglingEdge, cause: tozderrors.WithStack(err)}
	case errors.Is(err, graph.ErrSchemaMismatch):
		return &Error{Kind: KindSchemaMismatch, cause: tozderrors.WithStack(err)}
	case errors.Is(err, snapshot.ErrMalformedInput):
		return &Error{Kind: KindInputMalformed, cause: tozderrors.WithStack(err)}
	case errors.Is(err, snapshot.ErrIO):
		return &Error{Kind: KindIoFailure, cause: tozderrors.WithStack(err)}
	default:
		return &Error{Kind: KindInternal, cause: tozderrors.WithStack(err)}
	}
}

// Options lets a caller observe a run in progress; both fields are
// optional.
type Options struct {
	Logger     *slog.Logger
	OnProgress func(snapshot.Progress)
}

// Run parses the snapshot read from r, runs the duplicate and
// hidden-class analyzers sequentially, batches a single retention-path
// search over their combined representatives, and assembles the final
// report. It is the one call every consumer makes.
func Run(ctx context.Context, r io.Reader, cfg config.Config, opts Options) (*report.Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	parsed, err := snapshot.Parse(r, snapshot.Options{
		OnProgress: opts.OnProgress,
		// Declared-count drift is a warn-and-proceed condition, not a
		// report annotation: the decoded data is still self-consistent.
		OnWarning: func(msg string) {
			logger.Warn("snapshot parser warning", "detail", msg)
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	logger.Info("parsed snapshot",
		"nodes", parsed.Graph.NodeCount(),
		"edges", parsed.Graph.EdgeCount(),
		"node_fields", parsed.Metadata.NodeFieldCount(),
		"edge_fields", parsed.Metadata.EdgeFieldCount(),
	)

	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	dupResult := analysis.FindDuplicates(parsed.Graph, cfg.MaxColorRefinementRounds, cfg.IncludeHiddenClasses)
	if dupResult.LimitHit {
		logger.Warn("color refinement hit round limit before stabilizing",
			"rounds", dupResult.RoundsRun)
	}
	logger.Info("duplicate analysis complete", "groups", len(dupResult.Groups))

	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	hiddenGroups := analysis.FindHiddenClasses(parsed.Graph, cfg.ShapeFanoutThreshold)
	logger.Info("hidden-class analysis complete", "groups", len(hiddenGroups))

	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	rpt := report.Assemble(parsed.Graph, dupResult, hiddenGroups, report.Options{
		TopK:             cfg.TopK,
		MaxPathsPerGroup: cfg.MaxRetentionPaths,
	})

	for _, w := range rpt.Warnings {
		logger.Warn("analysis degraded", "kind", string(w.Kind), "detail", w.Detail)
	}

	return rpt, nil
}
