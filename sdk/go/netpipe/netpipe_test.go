package netpipe

import (
	"context"
	"errors"
	"testing"
)

func TestOutflowCeilingScenario(t *testing.T) {
	ch, err := Open(Width16, WithMaxOutflow(10), WithName("sdk"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	if _, err := ch.Guard().Precheck(1, 7); err != nil {
		t.Fatalf("Precheck: %v", err)
	}
	if err := ch.Attach(context.Background(), Driver("nic0"), Forced); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if r, err := ch.Send([]byte{0, 0, 0, 7}, 1); err != nil || r.Outflow != 4 {
		t.Fatalf("first send: %+v %v", r, err)
	}
	ch.Guard().Precheck(2, 7)
	if r, err := ch.Send([]byte{0, 0, 0, 7}, 2); err != nil || r.Outflow != 8 {
		t.Fatalf("second send: %+v %v", r, err)
	}
	_, err = ch.Send([]byte{0, 0, 0, 7}, 3)
	if !errors.Is(err, ErrOutflowExceeded) || KindOf(err) != "outflow_exceeded" {
		t.Fatalf("expected outflow exceeded, got %v", err)
	}
	if ch.Outflow() != 8 {
		t.Errorf("outflow should stay 8, got %d", ch.Outflow())
	}
}

func TestExplicitAttachWithStaticEvaluator(t *testing.T) {
	var seen []Event
	ch, err := Open(Width32,
		WithEvaluator(StaticEvaluator(map[string]bool{"link ok": true})),
		WithDrivers(DriverWhen("nic0", "link ok", 0), DriverWhen("nic1", "link bad", 0)),
		WithObserver(ObserverFunc(func(e Event) { seen = append(seen, e) })),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	if err := ch.Attach(context.Background(), Driver("nic1"), Explicit); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
	if err := ch.Attach(context.Background(), Driver("nic9"), Forced); !errors.Is(err, ErrDriverUnavailable) {
		t.Errorf("expected ErrDriverUnavailable, got %v", err)
	}
	if err := ch.Attach(context.Background(), Driver("nic0"), Explicit); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if ch.DriverState() != ExplicitState {
		t.Errorf("expected explicit state, got %s", ch.DriverState())
	}
	if len(seen) != 4 {
		t.Errorf("expected open, two rejects and attach events, got %d", len(seen))
	}
}

func TestAlgorithmOption(t *testing.T) {
	ch, err := Open(Width64, WithAlgorithm(Murmur3))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()
	if ch.Guard().Algorithm() != Murmur3 {
		t.Errorf("expected murmur3 guard, got %s", ch.Guard().Algorithm())
	}
}

func TestSharedGuardAcrossChannels(t *testing.T) {
	g := NewGuard(Castagnoli)
	a, err := Open(Width32, WithGuard(g), WithAlgorithm(Murmur3))
	if err != nil {
		t.Fatalf("Open a: %v", err)
	}
	defer a.Close()
	b, err := Open(Width32, WithGuard(g))
	if err != nil {
		t.Fatalf("Open b: %v", err)
	}
	defer b.Close()

	if _, err := a.Guard().Precheck(9, 42); err != nil {
		t.Fatalf("Precheck: %v", err)
	}
	if _, err := b.Guard().Precheck(9, 42); !errors.Is(err, ErrDuplicatePrecheck) {
		t.Errorf("expected shared record to block second precheck, got %v", err)
	}
	if a.Guard().Algorithm() != Castagnoli {
		t.Errorf("WithGuard should win over WithAlgorithm, got %s", a.Guard().Algorithm())
	}
}
