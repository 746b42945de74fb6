package scheduler

import "testing"

func TestLedgerReserveRelease(t *testing.T) {
	l := NewLedger(map[string]float64{"cpu": 50, "memory": 80})

	if !l.Reserve(map[string]float64{"cpu": 30, "memory": 40}) {
		t.Fatal("reservation within capacity should succeed")
	}
	if got := l.Snapshot()["cpu"]; got != 20 {
		t.Errorf("cpu available = %v, want 20", got)
	}

	// Exceeding any one type refuses the whole reservation atomically.
	if l.Reserve(map[string]float64{"cpu": 10, "memory": 50}) {
		t.Fatal("reservation exceeding memory should fail")
	}
	if got := l.Snapshot()["cpu"]; got != 20 {
		t.Errorf("failed reservation must not consume cpu, available = %v", got)
	}

	l.Release(map[string]float64{"cpu": 30, "memory": 40})
	snap := l.Snapshot()
	if snap["cpu"] != 50 || snap["memory"] != 80 {
		t.Errorf("release did not restore capacity: %v", snap)
	}
}

func TestLedgerReleaseClampsAtCapacity(t *testing.T) {
	l := NewLedger(map[string]float64{"cpu": 50})
	l.Release(map[string]float64{"cpu": 30})
	if got := l.Snapshot()["cpu"]; got != 50 {
		t.Errorf("available = %v, want clamp at capacity 50", got)
	}
}

func TestLedgerUnknownTypeDefaultsToFullPool(t *testing.T) {
	l := NewLedger(nil)
	if !l.Reserve(map[string]float64{"gpu": 60}) {
		t.Fatal("unknown resource type should default to a 100 pool")
	}
	if got := l.Snapshot()["gpu"]; got != 40 {
		t.Errorf("gpu available = %v, want 40", got)
	}
	if l.Reserve(map[string]float64{"gpu": 60}) {
		t.Error("second reservation should exceed remaining capacity")
	}
}

func TestLedgerSetCapacity(t *testing.T) {
	l := NewLedger(map[string]float64{"cpu": 50})

	// A demand of 60 cpu is refused at capacity 50 and admitted at 100.
	if l.Reserve(map[string]float64{"cpu": 60}) {
		t.Fatal("60 > 50 should be refused")
	}
	if err := l.SetCapacity("cpu", 100); err != nil {
		t.Fatalf("SetCapacity: %v", err)
	}
	if !l.Reserve(map[string]float64{"cpu": 60}) {
		t.Fatal("60 <= 100 should be admitted")
	}

	if err := l.SetCapacity("cpu", -1); err == nil {
		t.Error("negative capacity should be rejected")
	}
}

func TestLedgerSetCapacityPreservesReservations(t *testing.T) {
	l := NewLedger(map[string]float64{"cpu": 100})
	if !l.Reserve(map[string]float64{"cpu": 70}) {
		t.Fatal("reserve failed")
	}

	// Shrinking capacity keeps the outstanding reservation accounted for.
	if err := l.SetCapacity("cpu", 80); err != nil {
		t.Fatalf("SetCapacity: %v", err)
	}
	if got := l.Snapshot()["cpu"]; got != 10 {
		t.Errorf("available = %v, want 10 (80 capacity - 70 reserved)", got)
	}

	l.Release(map[string]float64{"cpu": 70})
	if got := l.Snapshot()["cpu"]; got != 80 {
		t.Errorf("available after release = %v, want 80", got)
	}
}
