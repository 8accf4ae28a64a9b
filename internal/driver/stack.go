// Package driver implements the attach/detach protocol that gates a pipe.
//
// A Stack starts in NullOrigin. Attach in Forced mode always loads the
// driver; Explicit mode loads it only when the precondition evaluator
// succeeds. A null or unavailable driver moves the stack to Rejected.
// Switching between Forced and Explicit requires a Detach in between.
//
// A Stack is owned by a single caller and is not safe for concurrent use.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/corbin-r/net-pipe/internal/logging"
)

// DefaultPreconditionTimeout bounds a single evaluator call.
const DefaultPreconditionTimeout = 5 * time.Second

// Stack is the driver admission state machine for one pipe.
type Stack struct {
	state      State
	ref        Ref
	attachedAt time.Time

	evaluator Evaluator
	catalog   Catalog
	timeout   time.Duration
	logger    zerolog.Logger
}

// StackOption configures a Stack.
type StackOption func(*Stack)

// WithEvaluator sets the precondition evaluator used in Explicit mode.
func WithEvaluator(e Evaluator) StackOption {
	return func(s *Stack) { s.evaluator = e }
}

// WithCatalog restricts attach to drivers the catalog knows. A catalog
// entry's precondition replaces whatever the caller's Ref carries.
func WithCatalog(c Catalog) StackOption {
	return func(s *Stack) { s.catalog = c }
}

// WithTimeout bounds each evaluator call. Non-positive values keep the default.
func WithTimeout(d time.Duration) StackOption {
	return func(s *Stack) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) StackOption {
	return func(s *Stack) { s.logger = l }
}

// NewStack returns a Stack in NullOrigin. Without an evaluator every
// explicit attach fails its precondition.
func NewStack(opts ...StackOption) *Stack {
	s := &Stack{
		state:   NullOrigin,
		timeout: DefaultPreconditionTimeout,
		logger:  logging.For("driver"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current admission state.
func (s *Stack) State() State {
	return s.state
}

// Attached reports whether a driver is loaded.
func (s *Stack) Attached() bool {
	return s.state.Attached()
}

// Driver returns the attached driver, if any.
func (s *Stack) Driver() (Ref, bool) {
	if !s.state.Attached() {
		return Ref{}, false
	}
	return s.ref, true
}

// AttachedAt returns when the current driver was loaded.
func (s *Stack) AttachedAt() time.Time {
	return s.attachedAt
}

// Attach loads ref in the given mode.
func (s *Stack) Attach(ctx context.Context, ref Ref, mode Mode) error {
	target, ok := mode.state()
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if s.state.Attached() {
		return fmt.Errorf("%w: %q in %s mode", ErrDriverAttached, s.ref.Name, s.state)
	}

	if ref.IsNull() {
		s.reject("null driver reference")
		return ErrNullDriver
	}
	if s.catalog != nil {
		known, found := s.catalog.Lookup(ref.Name)
		if !found {
			s.reject("driver not in catalog")
			return fmt.Errorf("%w: %q", ErrDriverUnavailable, ref.Name)
		}
		ref.Precondition = known.Precondition
	}

	if target == Explicit {
		if err := s.checkPrecondition(ctx, ref); err != nil {
			s.logger.Warn().Str("driver", ref.Name).Err(err).Msg("explicit attach refused")
			return err
		}
	}

	s.state = target
	s.ref = ref
	s.attachedAt = time.Now().UTC()
	s.logger.Debug().Str("driver", ref.Name).Str("state", target.String()).Msg("driver attached")
	return nil
}

// Detach unloads the attached driver and returns to NullOrigin.
func (s *Stack) Detach() error {
	if !s.state.Attached() {
		return fmt.Errorf("%w: stack is %s", ErrNoDriverAttached, s.state)
	}
	s.logger.Debug().Str("driver", s.ref.Name).Str("from", s.state.String()).Msg("driver detached")
	s.state = NullOrigin
	s.ref = Ref{}
	s.attachedAt = time.Time{}
	return nil
}

func (s *Stack) reject(reason string) {
	s.logger.Warn().Str("from", s.state.String()).Msg("attach rejected: " + reason)
	s.state = Rejected
	s.ref = Ref{}
}

func (s *Stack) checkPrecondition(ctx context.Context, ref Ref) error {
	if s.evaluator == nil {
		return &PreconditionError{Driver: ref.Name, Request: ref.Precondition, Reason: "no precondition evaluator configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.evaluator.Evaluate(ctx, ref.Precondition)
	if err != nil {
		reason := "evaluator error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("evaluator did not respond within %s", s.timeout)
		}
		return &PreconditionError{Driver: ref.Name, Request: ref.Precondition, Reason: reason, Err: err}
	}
	if !out.Success {
		reason := out.Reason
		if reason == "" {
			reason = fmt.Sprintf("exit code %d", out.ExitCode)
		}
		return &PreconditionError{Driver: ref.Name, Request: ref.Precondition, Reason: reason}
	}
	return nil
}
