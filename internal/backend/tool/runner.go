package tool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const maxLineBytes = 1024 * 1024

// LineFunc receives one non-empty output line of a running tool.
type LineFunc func(line string)

// Result describes a finished tool run.
type Result struct {
	ExitCode int
	Lines    int
	Duration time.Duration
}

// Runner executes invocations and streams their output.
type Runner interface {
	Run(ctx context.Context, invocation Invocation, onLine LineFunc) (Result, error)
}

// ExecRunner runs invocations as local processes with stdout and stderr
// merged into a single line stream.
type ExecRunner struct {
	// Timeout bounds a single invocation; zero disables the limit.
	Timeout time.Duration
	// Env is appended to the current process environment.
	Env []string
	Dir string
	// WaitDelay bounds how long output is drained after the process is killed.
	WaitDelay time.Duration
}

func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{
		Timeout:   timeout,
		WaitDelay: 5 * time.Second,
	}
}

func (r *ExecRunner) Run(parentCtx context.Context, invocation Invocation, onLine LineFunc) (Result, error) {
	start := time.Now()
	result := Result{ExitCode: -1}

	ctx := parentCtx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parentCtx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, invocation.Executable, invocation.Args...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = r.WaitDelay
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	output, err := cmd.StdoutPipe()
	if err != nil {
		return result, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	slog.Debug("ExecRunner: starting tool", "command", invocation.String())
	if err := cmd.Start(); err != nil {
		return result, &SpawnError{Executable: invocation.Executable, Err: err}
	}

	scanner := bufio.NewScanner(output)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.Lines++
		if onLine != nil {
			onLine(line)
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// keep the pipe drained so the tool cannot block on a full buffer
		_, _ = io.Copy(io.Discard, output)
	}

	waitErr := cmd.Wait()
	result.Duration = time.Since(start)
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if parentCtx.Err() != nil {
		return result, fmt.Errorf("%s interrupted: %w", invocation.Executable, parentCtx.Err())
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, &TimeoutError{Executable: invocation.Executable, Timeout: r.Timeout}
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return result, &ExitError{Executable: invocation.Executable, Code: exitErr.ExitCode()}
		}
		if !errors.Is(waitErr, exec.ErrWaitDelay) {
			return result, fmt.Errorf("wait for %s: %w", invocation.Executable, waitErr)
		}
	}
	if scanErr != nil {
		slog.Warn("ExecRunner: output stream ended with error",
			"executable", invocation.Executable,
			"error", scanErr)
	}

	return result, nil
}
