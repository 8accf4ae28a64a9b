package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultDenyCommands are command fragments ExecEvaluator never runs.
var DefaultDenyCommands = []string{
	"rm -rf /",
	"rm -rf ~",
	"dd if=/dev/zero",
	":(){ :|:& };:",
	"mkfs.",
	"> /dev/sda",
	"chmod -R 777 /",
	"sudo su",
	"sudo -i",
}

// ExecEvaluator runs the precondition command through a shell. The check
// succeeds when the command exits with the request's condition code.
type ExecEvaluator struct {
	Shell string
	Deny  []string
}

// NewExecEvaluator creates an evaluator using /bin/sh and the default denylist.
func NewExecEvaluator() *ExecEvaluator {
	return &ExecEvaluator{Shell: "/bin/sh", Deny: DefaultDenyCommands}
}

func (e *ExecEvaluator) Evaluate(ctx context.Context, req Request) (Outcome, error) {
	command := strings.TrimSpace(req.Command)
	if command == "" {
		return Outcome{ExitCode: -1, Reason: "empty precondition command"}, nil
	}
	if blocked, reason := e.blocked(command); blocked {
		return Outcome{ExitCode: -1, Reason: reason}, nil
	}

	shell := e.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.WaitDelay = 100 * time.Millisecond
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{ExitCode: -1}, ctxErr
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Outcome{ExitCode: -1}, fmt.Errorf("run precondition: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	out := Outcome{ExitCode: exitCode, Success: exitCode == int(req.Condition)}
	if !out.Success {
		out.Reason = fmt.Sprintf("exit code %d, want %d", exitCode, req.Condition)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			out.Reason += ": " + msg
		}
	}
	return out, nil
}

func (e *ExecEvaluator) blocked(command string) (bool, string) {
	lower := strings.ToLower(command)
	for _, pattern := range e.Deny {
		if pattern == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true, "command pattern blocked: " + pattern
		}
	}
	if isPipeToShell(lower) {
		return true, "pipe-to-shell execution detected"
	}
	return false, ""
}

func isPipeToShell(cmd string) bool {
	if !strings.Contains(cmd, "|") {
		return false
	}
	hasDownloader := strings.Contains(cmd, "curl") || strings.Contains(cmd, "wget")
	if !hasDownloader {
		return false
	}

	parts := strings.Split(cmd, "|")
	for i := 1; i < len(parts); i++ {
		trimmed := strings.TrimSpace(parts[i])
		for _, s := range []string{"sh", "bash", "zsh", "fish"} {
			if trimmed == s || strings.HasPrefix(trimmed, s+" ") {
				return true
			}
		}
	}
	return false
}
