package nix

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	derrors "github.com/matzehuels/drvgraph/pkg/errors"
)

// Executor runs an external program and returns its standard output.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecExecutor runs programs with os/exec. Standard input is bound to the
// null device so Nix never waits for a prompt answer.
type ExecExecutor struct {
	// Logger receives the captured standard error of failed commands.
	// Nil selects the default logger.
	Logger *log.Logger
}

// Run starts name with args and waits for it to exit. A non-zero exit
// returns an ErrCodeCommandFailed error whose cause is a
// [derrors.CommandError]; an expired context returns ErrCodeTimeout.
func (e ExecExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	cerr := &derrors.CommandError{
		Command:  name,
		Args:     args,
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}

	logger := e.Logger
	if logger == nil {
		logger = log.Default()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			logger.Error("command timed out", "cmd", name, "stderr", cerr.Stderr)
			return nil, derrors.Wrap(derrors.ErrCodeTimeout, cerr, "%s did not finish in time", name)
		}
		// Canceled by the caller, typically because a sibling failed.
		logger.Debug("command canceled", "cmd", name)
		return nil, ctxErr
	}
	logger.Error("command failed", "cmd", name, "status", cerr.ExitCode, "stderr", cerr.Stderr)
	return nil, derrors.Wrap(derrors.ErrCodeCommandFailed, cerr, "%s failed", name)
}

var _ Executor = ExecExecutor{}
