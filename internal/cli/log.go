// Package cli implements the drvgraph command-line interface.
//
// # Commands
//
// The main commands are:
//   - analyze: Compute the dependency map of a flake
//   - query: Dump and merge the build graph of a single store derivation
//   - cache: Manage the cache of Nix command outputs
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context. Without -v, analyze shows a spinner on
// stderr that follows the run ("Querying 12/40 derivations") and the
// pipeline only logs warnings.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/drvgraph/pkg/pipeline"
)

// newLogger returns a logger writing to w with "15:04:05.00" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// verbose reports whether l emits debug lines.
func verbose(l *log.Logger) bool {
	return l.GetLevel() <= log.DebugLevel
}

// pipelineLogger returns the logger handed to the pipeline. Without -v the
// spinner reports progress, so the pipeline only logs warnings and errors
// through a copy of l; l itself keeps its level.
func pipelineLogger(l *log.Logger) *log.Logger {
	if verbose(l) {
		return l
	}
	quiet := l.With()
	quiet.SetLevel(log.WarnLevel)
	return quiet
}

// logResult logs the summary line of a finished analysis.
func logResult(l *log.Logger, r *pipeline.Result) {
	st := r.Stats
	l.Info("analysis complete",
		"run", r.RunID,
		"derivations", len(r.Derivations),
		"queried", st.Queried,
		"skipped", st.Skipped,
		"dependencies", st.Dependencies,
		"elapsed", (st.EnumerateTime + st.GraphTime + st.AnalyzeTime).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
