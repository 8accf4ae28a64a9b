package driver

import (
	"context"
	"strings"
	"sync"
)

// Request is one precondition check: the command to judge and the
// condition code that counts as success.
type Request struct {
	Condition uint32 `json:"condition" yaml:"condition"`
	Command   string `json:"command" yaml:"command"`
}

// Outcome is the evaluator's verdict.
type Outcome struct {
	Success  bool   `json:"success"`
	ExitCode int    `json:"exit_code"`
	Reason   string `json:"reason,omitempty"`
}

// Evaluator judges whether an explicit-mode attach is permitted.
// Implementations must respect ctx cancellation.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (Outcome, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, req Request) (Outcome, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, req Request) (Outcome, error) {
	return f(ctx, req)
}

// StaticEvaluator answers from a fixed command table. Unknown commands
// fail. It records every request it sees.
type StaticEvaluator struct {
	mu      sync.Mutex
	results map[string]bool
	calls   []Request
}

// NewStaticEvaluator creates a StaticEvaluator from command -> success.
func NewStaticEvaluator(results map[string]bool) *StaticEvaluator {
	table := make(map[string]bool, len(results))
	for cmd, ok := range results {
		table[strings.TrimSpace(cmd)] = ok
	}
	return &StaticEvaluator{results: table}
}

// Set changes the verdict for one command.
func (s *StaticEvaluator) Set(command string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[strings.TrimSpace(command)] = success
}

func (s *StaticEvaluator) Evaluate(ctx context.Context, req Request) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)

	if s.results[strings.TrimSpace(req.Command)] {
		return Outcome{Success: true, ExitCode: int(req.Condition)}, nil
	}
	return Outcome{Success: false, ExitCode: -1, Reason: "command not permitted"}, nil
}

// Calls returns the requests evaluated so far.
func (s *StaticEvaluator) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}
