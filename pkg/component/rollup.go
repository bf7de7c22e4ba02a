// Package component implements the Component Roll-Up: pure functions that
// turn raw ping samples into per-device and per-component status
// (spec.md §4.2).
package component

import (
	"sort"
	"time"

	"github.com/wisbric/fleetwatch/pkg/probe"
	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// DeviceStatus is the derived status of a single device over the window.
type DeviceStatus struct {
	IP               string
	Role             vessel.Role
	UptimePercentage float64
	CurrentStatus    vessel.Status
	DowntimeAging    time.Duration
	LastPingTime     *time.Time
	HasData          bool
}

// ComponentStatus is the derived, aggregated status of one component
// (role) on one vessel.
type ComponentStatus struct {
	Role             vessel.Role
	Devices          []DeviceStatus
	UptimePercentage float64
	CurrentStatus    vessel.Status
	DowntimeAging    time.Duration
	HasData          bool
}

// RollUp derives a ComponentStatus from the raw PingData for one role.
// now is passed explicitly so the computation stays deterministic and
// testable.
func RollUp(data *probe.PingData, now time.Time) ComponentStatus {
	ips := make([]string, 0, len(data.Samples))
	for ip := range data.Samples {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	devices := make([]DeviceStatus, 0, len(ips))
	for _, ip := range ips {
		devices = append(devices, deviceRollUp(ip, data.Role, data.Samples[ip], now))
	}

	return aggregate(data.Role, devices)
}

// deviceRollUp derives a single device's status from its samples.
func deviceRollUp(ip string, role vessel.Role, samples []probe.PingSample, now time.Time) DeviceStatus {
	if len(samples) == 0 {
		return DeviceStatus{
			IP:            ip,
			Role:          role,
			CurrentStatus: vessel.StatusUnknown,
			HasData:       false,
		}
	}

	sorted := make([]probe.PingSample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	total := len(sorted)
	successful := 0
	for _, s := range sorted {
		if s.Success {
			successful++
		}
	}
	uptime := float64(successful) / float64(total) * 100.0

	last := sorted[total-1]
	current := vessel.StatusDown
	if last.Success {
		current = vessel.StatusUp
	}

	lastPing := last.Timestamp

	var aging time.Duration
	if current == vessel.StatusUp {
		aging = 0
	} else {
		// Walk backward from the most recent sample, accumulating the
		// start of the current trailing run of failures. If every sample
		// has failed, this is the first sample's timestamp.
		downtimeStart := sorted[total-1].Timestamp
		for i := total - 1; i >= 0; i-- {
			if sorted[i].Success {
				break
			}
			downtimeStart = sorted[i].Timestamp
		}
		aging = now.Sub(downtimeStart)
		if aging < 0 {
			aging = 0
		}
	}

	return DeviceStatus{
		IP:               ip,
		Role:             role,
		UptimePercentage: uptime,
		CurrentStatus:    current,
		DowntimeAging:    aging,
		LastPingTime:     &lastPing,
		HasData:          true,
	}
}

// aggregate combines device statuses into a ComponentStatus.
func aggregate(role vessel.Role, devices []DeviceStatus) ComponentStatus {
	cs := ComponentStatus{Role: role, Devices: devices}
	if len(devices) == 0 {
		cs.CurrentStatus = vessel.StatusUnknown
		return cs
	}

	var uptimeSum float64
	upCount := 0
	var maxAging time.Duration
	anyData := false
	for _, d := range devices {
		uptimeSum += d.UptimePercentage
		if d.CurrentStatus == vessel.StatusUp {
			upCount++
		}
		if d.DowntimeAging > maxAging {
			maxAging = d.DowntimeAging
		}
		if d.HasData {
			anyData = true
		}
	}

	cs.UptimePercentage = uptimeSum / float64(len(devices))
	cs.DowntimeAging = maxAging
	cs.HasData = anyData

	// ≥50% of devices UP → component UP (tie-break: ≥, spec.md §9).
	if float64(upCount) >= float64(len(devices))*0.5 {
		cs.CurrentStatus = vessel.StatusUp
	} else {
		cs.CurrentStatus = vessel.StatusDown
	}

	return cs
}
