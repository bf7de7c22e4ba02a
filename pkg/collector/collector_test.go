package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/pkg/probe"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

type fakeProber struct {
	mu        sync.Mutex
	failUntil int // number of calls (per vessel) that should fail before succeeding
	calls     map[string]int
	err       error
}

func (f *fakeProber) QueryPings(_ context.Context, v *vessel.Vessel, role vessel.Role, _ int) (*probe.PingData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[v.ID]++
	if f.calls[v.ID] <= f.failUntil {
		return nil, &probe.Error{Class: probe.ClassTimeout, Vessel: v.ID, Err: context.DeadlineExceeded}
	}
	return &probe.PingData{Role: role, Samples: map[string][]probe.PingSample{}}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	records []QueryResult
}

func (s *recordingSink) Record(_ context.Context, r QueryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

func testVessels(ids ...string) map[string]*vessel.Vessel {
	out := make(map[string]*vessel.Vessel, len(ids))
	for _, id := range ids {
		out[id] = &vessel.Vessel{ID: id, RoleOf: map[string]vessel.Role{}}
	}
	return out
}

func TestRun_RetryExhaustion(t *testing.T) {
	vessels := testVessels("A", "B", "C")
	probers := map[string]Prober{
		"A": &fakeProber{failUntil: 0},
		"B": &fakeProber{failUntil: 99}, // never succeeds
		"C": &fakeProber{failUntil: 0},
	}
	sink := &recordingSink{}
	cfg := Config{Parallelism: 10, MaxAttempts: 3, BaseBackoff: time.Millisecond, WindowHours: 24}
	c := New(vessels, probers, cfg, sink, nil)

	result := c.Run(context.Background(), uuid.New())

	if len(result.Metrics) != 2 {
		t.Errorf("expected 2 successful vessels, got %d", len(result.Metrics))
	}
	if len(result.Failed) != 1 || result.Failed[0] != "B" {
		t.Errorf("expected B to fail, got %v", result.Failed)
	}
	if result.Retries != 2 { // B carried into attempts 2 and 3
		t.Errorf("Retries = %d, want 2", result.Retries)
	}

	bAttempts := 0
	for _, r := range sink.records {
		if r.VesselID == "B" {
			bAttempts++
		}
	}
	if bAttempts != 3 {
		t.Errorf("expected 3 VesselQueryResult records for B, got %d", bAttempts)
	}
}

func TestRun_NonRetryableStopsImmediately(t *testing.T) {
	vessels := testVessels("X")
	probers := map[string]Prober{
		"X": &fakeProber{}, // will be overridden below to return non-retryable
	}
	probers["X"] = &authFailProber{}

	sink := &recordingSink{}
	cfg := Config{Parallelism: 10, MaxAttempts: 3, BaseBackoff: time.Millisecond, WindowHours: 24}
	c := New(vessels, probers, cfg, sink, nil)

	result := c.Run(context.Background(), uuid.New())

	if len(result.Failed) != 1 {
		t.Fatalf("expected X to fail, got %v", result.Failed)
	}

	count := 0
	for _, r := range sink.records {
		if r.VesselID == "X" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 VesselQueryResult for non-retryable failure, got %d", count)
	}
}

type authFailProber struct{}

func (authFailProber) QueryPings(_ context.Context, v *vessel.Vessel, _ vessel.Role, _ int) (*probe.PingData, error) {
	return nil, &probe.Error{Class: probe.ClassAuth, Vessel: v.ID, Err: context.Canceled}
}

func TestRun_ParallelismBound(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E"}
	vessels := testVessels(ids...)
	probers := make(map[string]Prober, len(ids))
	for _, id := range ids {
		probers[id] = &fakeProber{}
	}
	sink := &recordingSink{}
	cfg := Config{Parallelism: 2, MaxAttempts: 1, BaseBackoff: time.Millisecond, WindowHours: 24}
	c := New(vessels, probers, cfg, sink, nil)

	result := c.Run(context.Background(), uuid.New())
	if len(result.Metrics) != len(ids) {
		t.Errorf("expected all %d vessels to succeed, got %d", len(ids), len(result.Metrics))
	}
}
