// Package errsurface converts compiler exceptions and warnings into
// bus messages (spec §4.H). Publishing is best-effort, with no
// retries, via the same Bus semantics as reload messages.
package errsurface

import (
	"fmt"

	"github.com/PrecursorApp/reloadsrv/internal/bus"
	"github.com/PrecursorApp/reloadsrv/internal/wire"
)

// CompileError optionally carries structured frames for a compiler
// exception; callers that don't have structured data can just pass a
// plain error to ReportCompileError.
type CompileError struct {
	Message string
	Frames  []string
	Cause   error
}

func (e *CompileError) Error() string { return e.Message }

func (e *CompileError) Unwrap() error { return e.Cause }

// ReportCompileError renders err into {exception-data,
// formatted-exception} and publishes compile-failed.
func ReportCompileError(b *bus.Bus, projectID string, err error) {
	if err == nil {
		return
	}
	data := map[string]any{"message": err.Error()}
	if ce, ok := err.(*CompileError); ok {
		if len(ce.Frames) > 0 {
			frames := make([]any, len(ce.Frames))
			for i, f := range ce.Frames {
				frames[i] = f
			}
			data["stack"] = frames
		}
		if ce.Cause != nil {
			data["cause"] = ce.Cause.Error()
		}
	}
	b.Publish(wire.NewCompileFailed(projectID, data, formatException(err)))
}

// ReportCompileWarning publishes compile-warning with msg.
func ReportCompileWarning(b *bus.Bus, projectID, msg string) {
	b.Publish(wire.NewCompileWarning(projectID, msg))
}

func formatException(err error) string {
	if ce, ok := err.(*CompileError); ok && len(ce.Frames) > 0 {
		out := ce.Message + "\n"
		for _, f := range ce.Frames {
			out += fmt.Sprintf("\tat %s\n", f)
		}
		return out
	}
	return err.Error()
}
