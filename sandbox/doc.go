// Package sandbox provides session-isolated code execution.
//
// The sandbox package implements the execution engine for running untrusted
// Python scripts as child processes rooted in durable per-session working
// directories. Each execution writes the script to a uniquely named
// transient file, runs it with an optional deadline, captures stdout,
// stderr and any files the script produced, and returns a normalized
// result record.
//
// Isolation is limited to the process boundary and the private working
// directory: there is no syscall filtering, resource-limit enforcement or
// network isolation. Stronger containment must be layered on externally.
//
// Usage:
//
//	engine := sandbox.NewEngine(logger, store, sandbox.NewProcessRunner(logger))
//	result, err := engine.Execute(ctx, sandbox.Request{
//	    Code:             "print('Hello, World!')",
//	    SessionID:        "demo",
//	    Timeout:          10 * time.Second,
//	    CaptureArtifacts: true,
//	})
package sandbox
