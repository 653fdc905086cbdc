// Package exec abstracts external command execution for testability.
// Production code uses RealRunner; tests inject a MockRunner with
// pre-recorded responses. Commands are always invoked as argument
// vectors, never as shell strings.
package exec

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
)

// Runner executes external commands rooted at a working directory.
type Runner interface {
	// Output runs a command and returns its stdout.
	Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	// CombinedOutput runs a command and returns stdout+stderr interleaved.
	CombinedOutput(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	// Run executes a command, discarding output. The returned error
	// carries trimmed stderr context when the command fails.
	Run(ctx context.Context, dir string, name string, args ...string) error
}

// RealRunner executes commands using os/exec.
type RealRunner struct{}

// NewRealRunner returns a Runner backed by os/exec.
func NewRealRunner() *RealRunner {
	return &RealRunner{}
}

// Output runs a command and returns its stdout.
func (r *RealRunner) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.Output()
}

// CombinedOutput runs a command and returns stdout+stderr interleaved.
func (r *RealRunner) CombinedOutput(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Run executes a command, discarding output.
func (r *RealRunner) Run(ctx context.Context, dir string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return &CommandError{Name: name, Args: args, Stderr: msg, Err: err}
		}
		return err
	}
	return nil
}

// CommandError wraps a command failure with its stderr output.
type CommandError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return e.Name + " " + strings.Join(e.Args, " ") + ": " + e.Err.Error() + ": " + e.Stderr
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// MockResponse is the canned result for a matched command.
type MockResponse struct {
	Stdout []byte
	Err    error
}

// Matcher reports whether a command invocation matches a rule.
type Matcher func(dir, name string, args []string) bool

// rule pairs a matcher with its response.
type rule struct {
	match Matcher
	resp  MockResponse
}

// Call records one command invocation for verification in tests.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// MockRunner returns pre-recorded responses for commands. Rules are
// matched in registration order; unmatched commands succeed with empty
// output so tests only describe the invocations they care about.
type MockRunner struct {
	mu    sync.Mutex
	rules []rule
	calls []Call
}

// NewMockRunner creates an empty MockRunner.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// AddRule registers a matcher with its canned response.
func (m *MockRunner) AddRule(match Matcher, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{match: match, resp: resp})
}

// AddPrefixMatch matches commands whose leading arguments equal prefixArgs.
func (m *MockRunner) AddPrefixMatch(name string, prefixArgs []string, resp MockResponse) {
	m.AddRule(func(dir, n string, a []string) bool {
		if n != name || len(a) < len(prefixArgs) {
			return false
		}
		for i, want := range prefixArgs {
			if a[i] != want {
				return false
			}
		}
		return true
	}, resp)
}

// Calls returns a copy of all recorded invocations.
func (m *MockRunner) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsMatching returns recorded invocations of name whose leading args
// equal prefixArgs.
func (m *MockRunner) CallsMatching(name string, prefixArgs ...string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Name != name || len(c.Args) < len(prefixArgs) {
			continue
		}
		ok := true
		for i, want := range prefixArgs {
			if c.Args[i] != want {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockRunner) dispatch(dir, name string, args []string) MockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	for _, r := range m.rules {
		if r.match(dir, name, args) {
			return r.resp
		}
	}
	return MockResponse{}
}

// Output returns the matched rule's stdout.
func (m *MockRunner) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	resp := m.dispatch(dir, name, args)
	return resp.Stdout, resp.Err
}

// CombinedOutput returns the matched rule's stdout.
func (m *MockRunner) CombinedOutput(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	resp := m.dispatch(dir, name, args)
	return resp.Stdout, resp.Err
}

// Run returns the matched rule's error.
func (m *MockRunner) Run(ctx context.Context, dir string, name string, args ...string) error {
	resp := m.dispatch(dir, name, args)
	return resp.Err
}
