// Package session wraps the external session host (tmux) that runs
// agents as detached, named, re-attachable sessions. tmux is always
// invoked with argument vectors; the agent command is passed through as
// a single opaque argument and never interpolated into a shell string.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pexec "github.com/fyrsmithlabs/stagehand/internal/exec"
)

// ErrSessionNotFound indicates the named session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Host provides detached command execution in named sessions.
type Host interface {
	// Start launches command in a new detached session named name,
	// rooted at dir.
	Start(ctx context.Context, name, dir, command string) error

	// PanePID returns the OS process id of the session's pane.
	PanePID(ctx context.Context, name string) (int, error)

	// Alive reports whether the session still exists.
	Alive(ctx context.Context, name string) bool

	// Capture returns the trailing lines of the session's visible
	// output buffer.
	Capture(ctx context.Context, name string, lines int) (string, error)

	// Kill terminates the session by name.
	Kill(ctx context.Context, name string) error
}

// TmuxHost implements Host over the tmux CLI.
type TmuxHost struct {
	runner  pexec.Runner
	timeout time.Duration
}

// NewTmuxHost creates a tmux-backed session host.
func NewTmuxHost(runner pexec.Runner, timeout time.Duration) (*TmuxHost, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TmuxHost{runner: runner, timeout: timeout}, nil
}

// Start launches command in a new detached session.
func (h *TmuxHost) Start(ctx context.Context, name, dir, command string) error {
	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	out, err := h.runner.CombinedOutput(cctx, dir,
		"tmux", "new-session", "-d", "-s", name, "-c", dir, command)
	if err != nil {
		return fmt.Errorf("tmux new-session failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// PanePID resolves the pane's process id for direct signal delivery.
func (h *TmuxHost) PanePID(ctx context.Context, name string) (int, error) {
	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	out, err := h.runner.Output(cctx, "",
		"tmux", "display-message", "-p", "-t", name, "#{pane_pid}")
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("unparseable pane pid for %s: %w", name, err)
	}
	return pid, nil
}

// Alive reports whether the session still exists.
func (h *TmuxHost) Alive(ctx context.Context, name string) bool {
	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	return h.runner.Run(cctx, "", "tmux", "has-session", "-t", name) == nil
}

// Capture returns the trailing lines of the session's pane buffer.
func (h *TmuxHost) Capture(ctx context.Context, name string, lines int) (string, error) {
	if lines <= 0 {
		lines = 50
	}
	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	out, err := h.runner.Output(cctx, "",
		"tmux", "capture-pane", "-p", "-t", name, "-S", fmt.Sprintf("-%d", lines))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	return tail(string(out), lines), nil
}

// Kill terminates the session by name.
func (h *TmuxHost) Kill(ctx context.Context, name string) error {
	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.runner.Run(cctx, "", "tmux", "kill-session", "-t", name); err != nil {
		return fmt.Errorf("tmux kill-session %s: %w", name, err)
	}
	return nil
}

// tail returns the last n lines of s with trailing blanks trimmed.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
