package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/sessionbox/session"
)

// ErrEmptyCode indicates a request with no script text
var ErrEmptyCode = errors.New("code must not be empty")

// executionState tracks one execution through its lifecycle. The result
// record is only produced after the execution reaches stateFinalized.
type executionState string

const (
	stateCreated   executionState = "CREATED"
	stateRunning   executionState = "RUNNING"
	stateCompleted executionState = "COMPLETED"
	stateTimedOut  executionState = "TIMED_OUT"
	stateFailed    executionState = "FAILED"
	stateFinalized executionState = "FINALIZED"
)

// Engine orchestrates session resolution, snapshotting, context injection
// and process execution into a single Execute operation. It is the only
// entry point surrounding code must call.
//
// An Engine is an explicit value constructed once at process start and
// injected into callers; there is no package-level instance.
type Engine struct {
	logger  *zap.Logger
	store   *session.Store
	runner  *ProcessRunner
	checker SafetyChecker
}

// EngineOption defines a functional option for Engine
type EngineOption func(*Engine)

// WithSafetyChecker sets the pre-execution safety checker. When set, a
// rejection blocks execution.
func WithSafetyChecker(checker SafetyChecker) EngineOption {
	return func(e *Engine) {
		e.checker = checker
	}
}

// NewEngine creates an Engine over the given session store and runner
func NewEngine(logger *zap.Logger, store *session.Store, runner *ProcessRunner, opts ...EngineOption) *Engine {
	engine := &Engine{
		logger: logger,
		store:  store,
		runner: runner,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Store returns the session store backing this engine
func (e *Engine) Store() *session.Store {
	return e.store
}

// Execute runs the requested script in its session directory and returns a
// normalized result. Execution-domain failures (validation, rejected code,
// nonzero exit, timeout, spawn failure) are encoded in the result and
// never returned as an error. The error return is reserved for
// infrastructure faults such as being unable to create the session
// directory; the result is still populated in that case.
//
// Concurrent Execute calls against the same session key share the same
// directory with no locking or ordering: concurrent writers may race and
// must be serialized by the caller if determinism matters.
func (e *Engine) Execute(ctx context.Context, req Request) (result Result, err error) {
	start := time.Now()

	result = Result{
		Status:     StatusError,
		ReturnCode: ExitNever,
		Artifacts:  Artifacts{Files: []string{}},
		Timestamp:  start.Format(time.RFC3339),
	}
	defer func() {
		result.ExecutionTime = time.Since(start).Seconds()
	}()

	e.logger.Debug("execution created",
		zap.String("session_id", req.SessionID),
		zap.String("state", string(stateCreated)))

	if strings.TrimSpace(req.Code) == "" {
		result.Stderr = ErrEmptyCode.Error()
		return result, nil
	}

	if keyErr := session.ValidateKey(req.SessionID); keyErr != nil {
		result.Stderr = keyErr.Error()
		return result, nil
	}

	if e.checker != nil {
		if ok, reason := e.checker.Check(req.Code); !ok {
			e.logger.Warn("safety check rejected code",
				zap.String("session_id", req.SessionID),
				zap.String("reason", reason))
			result.Stderr = reason
			return result, nil
		}
	}

	dir, resolveErr := e.store.Resolve(req.SessionID)
	if resolveErr != nil {
		result.Stderr = resolveErr.Error()
		return result, fmt.Errorf("resolving session %q: %w", req.SessionID, resolveErr)
	}
	result.Artifacts.SessionDir = dir

	var before Snapshot
	if req.CaptureArtifacts {
		var snapErr error
		before, snapErr = TakeSnapshot(dir)
		if snapErr != nil {
			result.Stderr = snapErr.Error()
			return result, fmt.Errorf("pre-execution snapshot: %w", snapErr)
		}
	}

	code := req.Code
	if len(req.Context) > 0 {
		var injectErr error
		code, injectErr = InjectContext(req.Code, req.Context)
		if injectErr != nil {
			result.Stderr = injectErr.Error()
			return result, nil
		}
	}

	e.logger.Info("execution running",
		zap.String("session_id", req.SessionID),
		zap.String("state", string(stateRunning)),
		zap.Int("code_len", len(req.Code)),
		zap.Duration("timeout", req.Timeout))

	outcome := e.runner.Run(ctx, code, dir, req.Timeout)

	state := stateFailed
	switch {
	case outcome.TimedOut:
		state = stateTimedOut
	case outcome.ExitCode == 0:
		state = stateCompleted
	}

	// Finalization runs regardless of the terminal state above.
	if req.CaptureArtifacts {
		after, snapErr := TakeSnapshot(dir)
		if snapErr != nil {
			e.logger.Warn("post-execution snapshot failed",
				zap.String("session_id", req.SessionID),
				zap.Error(snapErr))
		} else {
			result.Artifacts.Files = DiffSnapshots(before, after, IsTransientScript)
		}
	}

	result.Stdout = outcome.Stdout
	result.Stderr = outcome.Stderr
	result.ReturnCode = outcome.ExitCode
	if state == stateCompleted {
		result.Status = StatusSuccess
	}

	e.logger.Info("execution finalized",
		zap.String("session_id", req.SessionID),
		zap.String("state", string(stateFinalized)),
		zap.String("terminal_state", string(state)),
		zap.Int("returncode", result.ReturnCode),
		zap.Int("artifacts", len(result.Artifacts.Files)),
		zap.Float64("execution_time", time.Since(start).Seconds()))

	return result, nil
}
