package sla

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/pkg/collector"
	"github.com/wisbric/fleetwatch/pkg/component"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

type fakeStore struct {
	mu      sync.Mutex
	open    map[uuid.UUID]ViolationRecord
	created int
	closed  int
}

func newFakeStore() *fakeStore { return &fakeStore{open: make(map[uuid.UUID]ViolationRecord)} }

func (f *fakeStore) OpenViolations(_ context.Context) ([]ViolationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ViolationRecord, 0, len(f.open))
	for _, v := range f.open {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) CreateViolation(_ context.Context, v ViolationRecord) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	v.ID = id
	f.open[id] = v
	f.created++
	return id, nil
}

func (f *fakeStore) CloseViolation(_ context.Context, id uuid.UUID, _ time.Time, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.open, id)
	f.closed++
	return nil
}

func TestAnalyzeOne_ExactlyAtThresholdIsCompliant(t *testing.T) {
	store := newFakeStore()
	a := New(Parameters{UptimeThresholdPercentage: 95, MonitoringWindowHours: 24}, store, nil)

	st, err := a.analyzeOne(context.Background(), time.Now(), "V1", vessel.RoleServer, 95.0, vessel.StatusUp, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsCompliant {
		t.Error("expected uptime exactly at threshold to be compliant")
	}
	if store.created != 0 {
		t.Error("no violation should be opened for a compliant component")
	}
}

func TestAnalyzeOne_DownOpensViolationUsingDowntimeAging(t *testing.T) {
	store := newFakeStore()
	a := New(Parameters{UptimeThresholdPercentage: 95, MonitoringWindowHours: 24}, store, nil)

	now := time.Now()
	st, err := a.analyzeOne(context.Background(), now, "V1", vessel.RoleServer, 50.0, vessel.StatusDown, 3*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if st.IsCompliant {
		t.Fatal("expected violation")
	}
	if st.ViolationDuration != 3*time.Hour {
		t.Errorf("ViolationDuration = %v, want downtime aging 3h", st.ViolationDuration)
	}
	if store.created != 1 {
		t.Errorf("expected one violation opened, got %d", store.created)
	}
}

func TestAnalyzeOne_UpButBelowThresholdEstimatesFromWindow(t *testing.T) {
	store := newFakeStore()
	a := New(Parameters{UptimeThresholdPercentage: 95, MonitoringWindowHours: 24}, store, nil)

	st, err := a.analyzeOne(context.Background(), time.Now(), "V1", vessel.RoleServer, 90.0, vessel.StatusUp, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := estimateWindowDowntime(24, 90.0)
	if st.ViolationDuration != want {
		t.Errorf("ViolationDuration = %v, want %v", st.ViolationDuration, want)
	}
}

func TestAnalyzeOne_RecoveryClosesViolation(t *testing.T) {
	store := newFakeStore()
	a := New(Parameters{UptimeThresholdPercentage: 95, MonitoringWindowHours: 24}, store, nil)
	ctx := context.Background()
	now := time.Now()

	if _, err := a.analyzeOne(ctx, now, "V1", vessel.RoleServer, 50.0, vessel.StatusDown, time.Hour); err != nil {
		t.Fatal(err)
	}
	if store.created != 1 {
		t.Fatalf("expected violation opened, got %d", store.created)
	}

	st, err := a.analyzeOne(ctx, now.Add(time.Hour), "V1", vessel.RoleServer, 99.0, vessel.StatusUp, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsCompliant {
		t.Fatal("expected compliant after recovery")
	}
	if store.closed != 1 {
		t.Errorf("expected violation closed, got %d closed", store.closed)
	}
}

func TestLoadCache_ReconstructsOpenViolations(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.open[id] = ViolationRecord{ID: id, VesselID: "V1", Role: vessel.RoleServer, Start: time.Now().Add(-time.Hour), UptimeAtStart: 40}

	a := New(DefaultParameters, store, nil)
	if err := a.LoadCache(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A subsequent compliant observation for the same (vessel, role) should
	// close the reloaded violation rather than opening a new one.
	st, err := a.analyzeOne(context.Background(), time.Now(), "V1", vessel.RoleServer, 99.0, vessel.StatusUp, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsCompliant {
		t.Fatal("expected compliant")
	}
	if store.closed != 1 {
		t.Errorf("expected the reloaded violation to close, got %d closed", store.closed)
	}
	if store.created != 0 {
		t.Errorf("expected no new violation created, got %d", store.created)
	}
}

func TestAnalyzeFleet_ContinuesPastVesselFailure(t *testing.T) {
	store := newFakeStore()
	a := New(DefaultParameters, store, nil)

	metrics := map[string]collector.VesselMetrics{
		"V1": {
			VesselID: "V1",
			Components: map[vessel.Role]component.ComponentStatus{
				vessel.RoleServer: {Role: vessel.RoleServer, UptimePercentage: 99, CurrentStatus: vessel.StatusUp},
			},
		},
		"V2": {
			VesselID: "V2",
			Components: map[vessel.Role]component.ComponentStatus{
				vessel.RoleAccessPoint: {Role: vessel.RoleAccessPoint, UptimePercentage: 10, CurrentStatus: vessel.StatusDown, DowntimeAging: 2 * time.Hour},
			},
		},
	}

	out := a.AnalyzeFleet(context.Background(), time.Now(), metrics)
	if len(out) != 2 {
		t.Fatalf("expected 2 vessels analyzed, got %d", len(out))
	}
	if out["V1"][vessel.RoleServer].IsCompliant != true {
		t.Error("V1 server should be compliant")
	}
	if out["V2"][vessel.RoleAccessPoint].IsCompliant != false {
		t.Error("V2 access_point should be a violation")
	}
}

func TestFleetSummary(t *testing.T) {
	statuses := map[string]map[vessel.Role]Status{
		"V1": {vessel.RoleServer: {IsCompliant: true, UptimePercentage: 100}},
		"V2": {
			vessel.RoleServer:     {IsCompliant: false, UptimePercentage: 10},
			vessel.RoleDashboard:  {IsCompliant: true, UptimePercentage: 100},
		},
	}
	s := FleetSummary(statuses)
	if s.TotalVessels != 2 || s.TotalComponents != 3 || s.CompliantComponents != 2 || s.ViolationComponents != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.VesselsWithViolations != 1 {
		t.Errorf("VesselsWithViolations = %d, want 1", s.VesselsWithViolations)
	}
}

func TestPersistentDowntimeViolations(t *testing.T) {
	a := New(Parameters{DowntimeAlertThresholdDays: 3}, newFakeStore(), nil)
	statuses := map[string]map[vessel.Role]Status{
		"V1": {vessel.RoleServer: {IsCompliant: false, DowntimeAging: 4 * 24 * time.Hour}},
		"V2": {vessel.RoleServer: {IsCompliant: false, DowntimeAging: time.Hour}},
	}
	persistent := a.PersistentDowntimeViolations(statuses)
	if len(persistent) != 1 {
		t.Fatalf("expected 1 persistent violation, got %d", len(persistent))
	}
}
