package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransientScriptPrefix marks the on-disk script file backing a single run.
// Files with this prefix never appear in artifact or session file listings.
const TransientScriptPrefix = "_exec_"

// ScriptFilePermission is the mode used for transient script files
const ScriptFilePermission = 0600

// defaultWaitDelay bounds how long output draining may continue after the
// process group has been killed.
const defaultWaitDelay = 5 * time.Second

// IsTransientScript reports whether name is a transient script file
func IsTransientScript(name string) bool {
	return strings.HasPrefix(name, TransientScriptPrefix)
}

// RunOutcome captures the observable result of one child process run
type RunOutcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// ProcessRunner executes script text as a child interpreter process with a
// working directory, environment, and optional deadline. It owns the
// transient script file lifecycle and kill-on-timeout.
type ProcessRunner struct {
	logger    *zap.Logger
	pythonBin string
	extraEnv  map[string]string
	waitDelay time.Duration
}

// RunnerOption defines a functional option for ProcessRunner
type RunnerOption func(*ProcessRunner)

// WithPythonBin sets the interpreter binary for ProcessRunner
func WithPythonBin(bin string) RunnerOption {
	return func(r *ProcessRunner) {
		r.pythonBin = bin
	}
}

// WithExtraEnv sets additional environment variables for spawned processes
func WithExtraEnv(env map[string]string) RunnerOption {
	return func(r *ProcessRunner) {
		r.extraEnv = env
	}
}

// NewProcessRunner creates a ProcessRunner with default settings and
// optional overrides
func NewProcessRunner(logger *zap.Logger, opts ...RunnerOption) *ProcessRunner {
	runner := &ProcessRunner{
		logger:    logger,
		pythonBin: "python3",
		waitDelay: defaultWaitDelay,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run writes code to a uniquely named transient script file inside workDir,
// executes the interpreter against it, and returns the captured outcome.
//
// The child runs with workDir as its current directory and PYTHONPATH set
// to workDir so the script can import sibling resources written by earlier
// runs in the same session. A zero deadline blocks until the child exits;
// otherwise the child's process group is killed when the deadline elapses
// and the outcome is marked as a timeout with exit code -1.
//
// Run never returns an error: spawn failures are encoded in the outcome.
// The script file is removed on every exit path; removal failures are
// swallowed.
func (r *ProcessRunner) Run(ctx context.Context, code, workDir string, deadline time.Duration) RunOutcome {
	scriptName := fmt.Sprintf("%s%s.py", TransientScriptPrefix, uuid.NewString())
	scriptPath := filepath.Join(workDir, scriptName)

	if err := os.WriteFile(scriptPath, []byte(code), ScriptFilePermission); err != nil {
		return RunOutcome{
			ExitCode: ExitNever,
			Stderr:   fmt.Sprintf("failed to write script file: %v", err),
		}
	}
	defer func() {
		_ = os.Remove(scriptPath)
	}()

	runCtx := ctx
	if deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.pythonBin, scriptPath) //nolint:gosec // Executing user scripts is the engine's purpose
	cmd.Dir = workDir

	cmd.Env = append(os.Environ(), "PYTHONPATH="+workDir)
	for key, value := range r.extraEnv {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	// Put the child in its own process group so a deadline kill also
	// reaches its direct descendants (best-effort).
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return os.ErrProcessDone
	}
	cmd.WaitDelay = r.waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	r.logger.Debug("spawning script process",
		zap.String("script", scriptName),
		zap.String("workdir", workDir),
		zap.Duration("deadline", deadline))

	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		stderr := stderrBuf.String()
		if stderr != "" && !strings.HasSuffix(stderr, "\n") {
			stderr += "\n"
		}
		stderr += fmt.Sprintf("Execution timeout (%s exceeded)", deadline)

		r.logger.Warn("script execution timed out",
			zap.String("script", scriptName),
			zap.Duration("deadline", deadline))

		return RunOutcome{
			Stdout:   stdoutBuf.String(),
			Stderr:   stderr,
			ExitCode: ExitNever,
			TimedOut: true,
		}
	}

	exitCode := 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			// Spawn failure: interpreter missing, permissions, etc.
			stderr := stderrBuf.String()
			if stderr != "" && !strings.HasSuffix(stderr, "\n") {
				stderr += "\n"
			}
			stderr += fmt.Sprintf("failed to start process: %v", err)

			return RunOutcome{
				Stdout:   stdoutBuf.String(),
				Stderr:   stderr,
				ExitCode: ExitNever,
			}
		}
	}

	return RunOutcome{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: exitCode,
	}
}
