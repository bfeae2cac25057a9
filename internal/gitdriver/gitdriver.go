// Package gitdriver is a thin subprocess wrapper around the git binary:
// clone, checkout, and ref introspection. Every invocation runs with a
// non-interactive environment (no credential helpers, no terminal
// prompts) and captures stdout/stderr so callers can render useful
// diagnostics on failure.
package gitdriver

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Error carries the raw output from a failed git invocation.
type Error struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("git %s: exit %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// run executes git with a non-interactive environment in dir, returning
// trimmed stdout or an *Error on non-zero exit.
func run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_ASKPASS=",
		"GIT_CONFIG_NOSYSTEM=1",
		// An empty credential.helper resets the helper list, so no
		// credential helper from any config file is consulted.
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=credential.helper",
		"GIT_CONFIG_VALUE_0=",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		command := "git"
		for _, a := range args {
			if !strings.HasPrefix(a, "-") {
				command = a
				break
			}
		}
		return "", &Error{
			Command:  command,
			Args:     args,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Clone runs "git clone <remote> <dir>" in the process's own working
// directory, so relative remote and dir paths resolve against it.
func Clone(remote, dir string) error {
	_, err := run("", "clone", remote, dir)
	return err
}

// Checkout runs "git -C <dir> checkout <ref>".
func Checkout(dir, ref string) error {
	_, err := run(dir, "-C", dir, "checkout", ref)
	return err
}

// ResolveRefName returns human-readable context for a resolved commit,
// used only for notification bodies. It prefers an exact tag match; on
// failure it falls back to listing branches containing the commit and
// returns the first non-HEAD branch name.
func ResolveRefName(dir, ref string) (string, error) {
	if tag, err := run(dir, "-C", dir, "describe", "--tags", "--exact-match", ref); err == nil {
		return tag, nil
	}

	out, err := run(dir, "-C", dir, "branch", "-a", "--contains", ref)
	if err != nil {
		return "", err
	}

	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		return "", fmt.Errorf("no non-HEAD branch containing %s", ref)
	}
	return strings.TrimSpace(strings.TrimPrefix(lines[1], "*")), nil
}
