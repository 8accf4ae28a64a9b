package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corbin-r/net-pipe/internal/logging"
)

func newTestStack(t *testing.T, opts ...StackOption) *Stack {
	t.Helper()
	logging.ConfigureTests()
	return NewStack(opts...)
}

func nic(command string) Ref {
	return Ref{Name: "nic0", Precondition: Request{Condition: 0, Command: command}}
}

func TestNewStackStartsNullOrigin(t *testing.T) {
	s := newTestStack(t)
	if s.State() != NullOrigin {
		t.Fatalf("expected null_origin, got %s", s.State())
	}
	if s.Attached() {
		t.Error("fresh stack must not be attached")
	}
}

func TestAttachNullDriverRejectedInEveryMode(t *testing.T) {
	for _, mode := range []Mode{ModeForced, ModeExplicit} {
		t.Run(string(mode), func(t *testing.T) {
			eval := NewStaticEvaluator(map[string]bool{"": true})
			s := newTestStack(t, WithEvaluator(eval))

			err := s.Attach(context.Background(), Ref{}, mode)
			if !errors.Is(err, ErrNullDriver) {
				t.Fatalf("expected ErrNullDriver, got %v", err)
			}
			if s.State() != Rejected {
				t.Errorf("expected rejected, got %s", s.State())
			}
			if len(eval.Calls()) != 0 {
				t.Error("null driver must not reach the evaluator")
			}
		})
	}
}

func TestAttachForcedIgnoresEvaluator(t *testing.T) {
	eval := NewStaticEvaluator(nil)
	s := newTestStack(t, WithEvaluator(eval))

	if err := s.Attach(context.Background(), nic("false"), ModeForced); err != nil {
		t.Fatalf("forced attach: %v", err)
	}
	if s.State() != Forced {
		t.Errorf("expected forced, got %s", s.State())
	}
	if len(eval.Calls()) != 0 {
		t.Error("forced attach must not consult the evaluator")
	}
	ref, ok := s.Driver()
	if !ok || ref.Name != "nic0" {
		t.Errorf("unexpected driver: %+v ok=%v", ref, ok)
	}
}

func TestAttachExplicitFollowsEvaluator(t *testing.T) {
	tests := []struct {
		name    string
		allowed bool
		want    State
	}{
		{"allowed", true, Explicit},
		{"refused", false, NullOrigin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := NewStaticEvaluator(map[string]bool{"ip link set nic0 up": tt.allowed})
			s := newTestStack(t, WithEvaluator(eval))

			err := s.Attach(context.Background(), nic("ip link set nic0 up"), ModeExplicit)
			if tt.allowed && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tt.allowed {
				if !errors.Is(err, ErrPreconditionFailed) {
					t.Fatalf("expected ErrPreconditionFailed, got %v", err)
				}
				var pe *PreconditionError
				if !errors.As(err, &pe) || pe.Request.Command != "ip link set nic0 up" {
					t.Errorf("expected *PreconditionError carrying the request, got %v", err)
				}
			}
			if s.State() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, s.State())
			}
			calls := eval.Calls()
			if len(calls) != 1 || calls[0].Command != "ip link set nic0 up" {
				t.Errorf("unexpected evaluator calls: %+v", calls)
			}
		})
	}
}

func TestAttachExplicitWithoutEvaluatorFails(t *testing.T) {
	s := newTestStack(t)
	err := s.Attach(context.Background(), nic("true"), ModeExplicit)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
	if s.State() != NullOrigin {
		t.Errorf("expected null_origin, got %s", s.State())
	}
}

func TestAttachExplicitEvaluatorTimeout(t *testing.T) {
	slow := EvaluatorFunc(func(ctx context.Context, req Request) (Outcome, error) {
		<-ctx.Done()
		return Outcome{}, ctx.Err()
	})
	s := newTestStack(t, WithEvaluator(slow), WithTimeout(20*time.Millisecond))

	start := time.Now()
	err := s.Attach(context.Background(), nic("sleep 60"), ModeExplicit)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("attach did not honor the evaluator timeout")
	}
}

func TestAttachWhileAttachedFails(t *testing.T) {
	eval := NewStaticEvaluator(map[string]bool{"true": true})
	s := newTestStack(t, WithEvaluator(eval))
	if err := s.Attach(context.Background(), nic("true"), ModeForced); err != nil {
		t.Fatalf("attach: %v", err)
	}

	err := s.Attach(context.Background(), nic("true"), ModeExplicit)
	if !errors.Is(err, ErrDriverAttached) {
		t.Fatalf("expected ErrDriverAttached, got %v", err)
	}
	if s.State() != Forced {
		t.Errorf("state must stay forced, got %s", s.State())
	}

	// Switching modes goes through detach.
	if err := s.Detach(); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := s.Attach(context.Background(), nic("true"), ModeExplicit); err != nil {
		t.Fatalf("explicit attach after detach: %v", err)
	}
	if s.State() != Explicit {
		t.Errorf("expected explicit, got %s", s.State())
	}
}

func TestDetachWithoutDriverFails(t *testing.T) {
	s := newTestStack(t)
	if err := s.Detach(); !errors.Is(err, ErrNoDriverAttached) {
		t.Fatalf("expected ErrNoDriverAttached on fresh stack, got %v", err)
	}

	_ = s.Attach(context.Background(), Ref{}, ModeForced)
	if err := s.Detach(); !errors.Is(err, ErrNoDriverAttached) {
		t.Fatalf("expected ErrNoDriverAttached from rejected, got %v", err)
	}
	if s.State() != Rejected {
		t.Errorf("failed detach must not change state, got %s", s.State())
	}
}

func TestAttachAfterRejectedSucceeds(t *testing.T) {
	s := newTestStack(t)
	_ = s.Attach(context.Background(), Ref{}, ModeForced)
	if err := s.Attach(context.Background(), nic(""), ModeForced); err != nil {
		t.Fatalf("attach after rejection: %v", err)
	}
	if s.State() != Forced {
		t.Errorf("expected forced, got %s", s.State())
	}
}

func TestAttachUnknownCatalogDriverRejected(t *testing.T) {
	cat := NewMapCatalog(Ref{Name: "nic0", Precondition: Request{Command: "ip link show nic0"}})
	eval := NewStaticEvaluator(map[string]bool{"ip link show nic0": true})
	s := newTestStack(t, WithCatalog(cat), WithEvaluator(eval))

	err := s.Attach(context.Background(), Ref{Name: "wlan9"}, ModeForced)
	if !errors.Is(err, ErrDriverUnavailable) {
		t.Fatalf("expected ErrDriverUnavailable, got %v", err)
	}
	if s.State() != Rejected {
		t.Errorf("expected rejected, got %s", s.State())
	}

	// Catalog supplies the precondition when the caller omits it.
	if err := s.Attach(context.Background(), Ref{Name: "nic0"}, ModeExplicit); err != nil {
		t.Fatalf("explicit attach via catalog: %v", err)
	}
	if calls := eval.Calls(); len(calls) != 1 || calls[0].Command != "ip link show nic0" {
		t.Errorf("unexpected evaluator calls: %+v", calls)
	}
}

func TestCatalogPreconditionOverridesCaller(t *testing.T) {
	cat := NewMapCatalog(Ref{Name: "nic0", Precondition: Request{Command: "ip link show nic0", Condition: 0}})
	eval := NewStaticEvaluator(map[string]bool{"ip link show nic0": true, "touch /tmp/owned": true})
	s := newTestStack(t, WithCatalog(cat), WithEvaluator(eval))

	caller := Ref{Name: "nic0", Precondition: Request{Command: "touch /tmp/owned", Condition: 7}}
	if err := s.Attach(context.Background(), caller, ModeExplicit); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	calls := eval.Calls()
	if len(calls) != 1 || calls[0].Command != "ip link show nic0" || calls[0].Condition != 0 {
		t.Fatalf("expected only the catalog precondition to run, got %+v", calls)
	}
	if ref, _ := s.Driver(); ref.Precondition.Command != "ip link show nic0" {
		t.Errorf("attached ref should carry the catalog precondition, got %+v", ref.Precondition)
	}
	if s.AttachedAt().IsZero() {
		t.Error("expected attach time to be recorded")
	}
	s.Detach()
	if !s.AttachedAt().IsZero() {
		t.Error("expected attach time cleared on detach")
	}
}

func TestAttachInvalidMode(t *testing.T) {
	s := newTestStack(t)
	err := s.Attach(context.Background(), nic("true"), Mode("sideways"))
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if s.State() != NullOrigin {
		t.Errorf("expected null_origin, got %s", s.State())
	}
}

func TestParseModeAndState(t *testing.T) {
	if m, err := ParseMode(" Forced "); err != nil || m != ModeForced {
		t.Errorf("ParseMode(Forced) = %q, %v", m, err)
	}
	if _, err := ParseMode("auto"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
	for _, st := range []State{NullOrigin, Rejected, Forced, Explicit} {
		got, err := ParseState(st.String())
		if err != nil || got != st {
			t.Errorf("ParseState(%q) = %v, %v", st.String(), got, err)
		}
	}
}
