package alertmgr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/pkg/sla"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

type fakeStore struct {
	mu    sync.Mutex
	open  map[uuid.UUID]Alert
	count int
}

func newFakeStore() *fakeStore { return &fakeStore{open: make(map[uuid.UUID]Alert)} }

func (f *fakeStore) OpenAlerts(_ context.Context) ([]Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Alert, 0, len(f.open))
	for _, a := range f.open {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) CreateAlert(_ context.Context, a Alert) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	a.ID = id
	if a.Kind != KindRecovery {
		f.open[id] = a
	}
	f.count++
	return id, nil
}

func (f *fakeStore) ResolveAlert(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.open, id)
	return nil
}

func TestEvaluate_OpensSLAViolationOnce(t *testing.T) {
	store := newFakeStore()
	m := New(store, 3, nil)
	ctx := context.Background()
	st := sla.Status{VesselID: "V1", Role: vessel.RoleServer, IsCompliant: false, UptimePercentage: 40}

	produced, err := m.Evaluate(ctx, time.Now(), st, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(produced) != 1 || produced[0].Severity != SeverityCritical {
		t.Fatalf("expected one CRITICAL alert (uptime<50), got %+v", produced)
	}

	// Re-evaluating the same non-compliant state must not open a second alert.
	produced, err = m.Evaluate(ctx, time.Now(), st, 2*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(produced) != 0 {
		t.Errorf("expected no new alerts on repeat violation, got %+v", produced)
	}
}

func TestEvaluate_PersistentDowntimeOpensSecondAlert(t *testing.T) {
	store := newFakeStore()
	m := New(store, 3, nil)
	ctx := context.Background()
	st := sla.Status{VesselID: "V1", Role: vessel.RoleServer, IsCompliant: false, UptimePercentage: 40}

	produced, err := m.Evaluate(ctx, time.Now(), st, 4*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	var sawPersistent bool
	for _, a := range produced {
		if a.Kind == KindPersistentDowntime {
			sawPersistent = true
		}
	}
	if !sawPersistent {
		t.Fatalf("expected a PERSISTENT_DOWNTIME alert at 4 days downtime, got %+v", produced)
	}
}

func TestEvaluate_RecoveryResolvesAndEmits(t *testing.T) {
	store := newFakeStore()
	m := New(store, 3, nil)
	ctx := context.Background()

	down := sla.Status{VesselID: "V1", Role: vessel.RoleServer, IsCompliant: false, UptimePercentage: 40}
	if _, err := m.Evaluate(ctx, time.Now(), down, time.Hour); err != nil {
		t.Fatal(err)
	}

	up := sla.Status{VesselID: "V1", Role: vessel.RoleServer, IsCompliant: true, UptimePercentage: 99}
	produced, err := m.Evaluate(ctx, time.Now(), up, 0)
	if err != nil {
		t.Fatal(err)
	}
	var sawRecovery bool
	for _, a := range produced {
		if a.Kind == KindRecovery {
			sawRecovery = true
		}
	}
	if !sawRecovery {
		t.Fatalf("expected a RECOVERY alert, got %+v", produced)
	}
	if len(store.open) != 0 {
		t.Errorf("expected ledger cleared after recovery, still open: %+v", store.open)
	}
}

func TestLoadLedger_ReconstructsFromStore(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.open[id] = Alert{ID: id, VesselID: "V1", Role: vessel.RoleServer, Kind: KindSLAViolation}

	m := New(store, 3, nil)
	if err := m.LoadLedger(context.Background()); err != nil {
		t.Fatal(err)
	}

	st := sla.Status{VesselID: "V1", Role: vessel.RoleServer, IsCompliant: false, UptimePercentage: 40}
	produced, err := m.Evaluate(context.Background(), time.Now(), st, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range produced {
		if a.Kind == KindSLAViolation {
			t.Fatal("expected no duplicate SLA_VIOLATION after loading an already-open one from the store")
		}
	}
}

func TestSeverityForViolation(t *testing.T) {
	cases := []struct {
		hours float64
		up    float64
		want  Severity
	}{
		{73, 95, SeverityCritical},
		{0, 40, SeverityCritical},
		{25, 95, SeverityWarning},
		{0, 70, SeverityWarning},
		{5, 95, SeverityWarning},
		{0, 91, SeverityInfo},
	}
	for _, c := range cases {
		got := severityForViolation(time.Duration(c.hours*float64(time.Hour)), c.up)
		if got != c.want {
			t.Errorf("severityForViolation(%vh, %v%%) = %v, want %v", c.hours, c.up, got, c.want)
		}
	}
}
