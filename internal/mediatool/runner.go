// Package mediatool dispatches blocking external media tools (ffprobe,
// ffmpeg) through a bounded slot pool so a slow or hung process degrades
// throughput instead of stalling unrelated requests.
package mediatool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrDispatch marks failures of the dispatch machinery itself: the
// context expired or was cancelled before a pool slot came free, or the
// process could not be launched at all. Callers report these as internal
// errors, distinct from a tool that ran and rejected its input.
var ErrDispatch = errors.New("mediatool: dispatch failed")

// Result carries the outcome of a tool invocation that actually ran.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Ok reports whether the tool exited zero.
func (r *Result) Ok() bool {
	return r.ExitCode == 0
}

// Runner limits how many external processes run at once.
type Runner struct {
	slots chan struct{}
}

// NewRunner builds a Runner allowing at most maxConcurrent simultaneous
// processes. A non-positive limit falls back to 1.
func NewRunner(maxConcurrent int) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runner{slots: make(chan struct{}, maxConcurrent)}
}

// Run executes name with args, bounded by timeout, after acquiring a
// pool slot. The returned error is non-nil only for dispatch, launch, or
// timeout problems; a tool that ran to completion reports its verdict
// through Result.ExitCode and Result.Stderr.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*Result, error) {
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for slot: %v", ErrDispatch, ctx.Err())
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() != nil {
		// a process that never exits is a resource leak, treat as fatal
		return nil, fmt.Errorf("%s timed out after %s: %w", name, timeout, runCtx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Result{
				Stdout:   stdout.Bytes(),
				Stderr:   stderr.Bytes(),
				ExitCode: exitErr.ExitCode(),
			}, nil
		}
		return nil, fmt.Errorf("%w: launch %s: %v", ErrDispatch, name, err)
	}

	return &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}
