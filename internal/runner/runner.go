// Package runner executes a job's script body through a resolved
// shell, capturing exit code, stdout, and stderr.
package runner

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/minicd/minicd/internal/definition"
)

// Result carries the outcome of one script execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

const defaultShell = "/bin/sh"

// Run executes script in dir with env as the process's complete
// environment, using the runner resolved from shell (or the system
// default shell when shell is unset). Only a failure to even start
// the process is reported as err; a clean
// non-zero exit is surfaced purely through Result.ExitCode so callers
// can distinguish "ran and failed" from "could not run at all".
func Run(ctx context.Context, shell definition.Shell, script, dir string, env []string) (Result, error) {
	runner := shell.Runner
	var args []string
	if shell.Set {
		args = append(append([]string{}, shell.Args...), script)
	} else {
		runner = defaultShell
		args = []string{"-c", script}
	}

	cmd := exec.CommandContext(ctx, runner, args...)
	cmd.Dir = dir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		result.ExitCode = 0
		return result, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}
