package component

import (
	"testing"
	"time"

	"github.com/wisbric/fleetwatch/pkg/probe"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

func TestDeviceRollUp_NoSamples(t *testing.T) {
	now := time.Now()
	d := deviceRollUp("10.0.0.1", vessel.RoleServer, nil, now)

	if d.HasData {
		t.Error("expected HasData=false")
	}
	if d.CurrentStatus != vessel.StatusUnknown {
		t.Errorf("CurrentStatus = %v, want UNKNOWN", d.CurrentStatus)
	}
	if d.UptimePercentage != 0 {
		t.Errorf("UptimePercentage = %v, want 0", d.UptimePercentage)
	}
	if d.DowntimeAging != 0 {
		t.Errorf("DowntimeAging = %v, want 0", d.DowntimeAging)
	}
}

func TestDeviceRollUp_CurrentlyUp(t *testing.T) {
	now := time.Now()
	samples := []probe.PingSample{
		{Timestamp: now.Add(-2 * time.Hour), Success: false},
		{Timestamp: now.Add(-1 * time.Hour), Success: true},
	}
	d := deviceRollUp("10.0.0.1", vessel.RoleServer, samples, now)

	if d.CurrentStatus != vessel.StatusUp {
		t.Errorf("CurrentStatus = %v, want UP", d.CurrentStatus)
	}
	if d.DowntimeAging != 0 {
		t.Errorf("DowntimeAging = %v, want 0 when currently up", d.DowntimeAging)
	}
	if d.UptimePercentage != 50 {
		t.Errorf("UptimePercentage = %v, want 50", d.UptimePercentage)
	}
}

func TestDeviceRollUp_NeverSucceeded(t *testing.T) {
	now := time.Now()
	first := now.Add(-5 * time.Hour)
	samples := []probe.PingSample{
		{Timestamp: first, Success: false},
		{Timestamp: now.Add(-3 * time.Hour), Success: false},
		{Timestamp: now.Add(-1 * time.Hour), Success: false},
	}
	d := deviceRollUp("10.0.0.1", vessel.RoleServer, samples, now)

	if d.CurrentStatus != vessel.StatusDown {
		t.Errorf("CurrentStatus = %v, want DOWN", d.CurrentStatus)
	}
	// downtime_aging = now - first_sample_time when there has never been a success.
	want := now.Sub(first)
	if d.DowntimeAging != want {
		t.Errorf("DowntimeAging = %v, want %v", d.DowntimeAging, want)
	}
}

func TestDeviceRollUp_DowntimeAgingOnlyTrailingRun(t *testing.T) {
	now := time.Now()
	samples := []probe.PingSample{
		{Timestamp: now.Add(-10 * time.Hour), Success: false},
		{Timestamp: now.Add(-8 * time.Hour), Success: true}, // resets the downtime run
		{Timestamp: now.Add(-3 * time.Hour), Success: false},
		{Timestamp: now.Add(-1 * time.Hour), Success: false},
	}
	d := deviceRollUp("10.0.0.1", vessel.RoleServer, samples, now)

	want := now.Sub(now.Add(-3 * time.Hour))
	if d.DowntimeAging != want {
		t.Errorf("DowntimeAging = %v, want %v (only the trailing failure run)", d.DowntimeAging, want)
	}
}

func TestAggregate_FiftyPercentUpIsUp(t *testing.T) {
	devices := []DeviceStatus{
		{CurrentStatus: vessel.StatusUp, UptimePercentage: 100},
		{CurrentStatus: vessel.StatusDown, UptimePercentage: 0},
	}
	cs := aggregate(vessel.RoleAccessPoint, devices)
	if cs.CurrentStatus != vessel.StatusUp {
		t.Errorf("CurrentStatus = %v, want UP at exactly 50%% up devices", cs.CurrentStatus)
	}
	if cs.UptimePercentage != 50 {
		t.Errorf("UptimePercentage = %v, want mean 50", cs.UptimePercentage)
	}
}

func TestAggregate_NoDevicesIsUnknown(t *testing.T) {
	cs := aggregate(vessel.RoleDashboard, nil)
	if cs.CurrentStatus != vessel.StatusUnknown {
		t.Errorf("CurrentStatus = %v, want UNKNOWN", cs.CurrentStatus)
	}
	if cs.HasData {
		t.Error("expected HasData=false")
	}
}

func TestAggregate_DowntimeAgingIsMax(t *testing.T) {
	devices := []DeviceStatus{
		{CurrentStatus: vessel.StatusDown, DowntimeAging: 2 * time.Hour},
		{CurrentStatus: vessel.StatusDown, DowntimeAging: 5 * time.Hour},
	}
	cs := aggregate(vessel.RoleServer, devices)
	if cs.DowntimeAging != 5*time.Hour {
		t.Errorf("DowntimeAging = %v, want max 5h", cs.DowntimeAging)
	}
}

func TestRollUp_IncludesNoDataIPs(t *testing.T) {
	now := time.Now()
	data := &probe.PingData{
		Role: vessel.RoleServer,
		Samples: map[string][]probe.PingSample{
			"10.0.0.1": {{Timestamp: now, Success: true}},
			"10.0.0.2": nil,
		},
	}
	cs := RollUp(data, now)
	if len(cs.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(cs.Devices))
	}
	var sawNoData bool
	for _, d := range cs.Devices {
		if d.IP == "10.0.0.2" {
			sawNoData = true
			if d.HasData {
				t.Error("10.0.0.2 should have HasData=false")
			}
		}
	}
	if !sawNoData {
		t.Fatal("expected device entry for no-data IP")
	}
}
