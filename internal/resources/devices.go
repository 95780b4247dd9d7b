package resources

import (
	"strings"
	"time"
)

var maintenanceDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// NextMaintenance reports when device is next due. It returns false for devices
// without a maintenance cycle.
func NextMaintenance(device Device) (time.Time, bool) {
	if device.MaintenanceCycleDays <= 0 {
		return time.Time{}, false
	}
	last, ok := parseMaintenanceDate(device.LastMaintenanceDate)
	if !ok {
		return time.Time{}, true
	}
	return last.AddDate(0, 0, device.MaintenanceCycleDays), true
}

// DueForMaintenance returns the devices whose maintenance cycle has elapsed at
// now, in input order. A device with a cycle but no recorded maintenance is due.
func DueForMaintenance(devices []Device, now time.Time) []Device {
	due := make([]Device, 0)
	for _, device := range devices {
		next, scheduled := NextMaintenance(device)
		if !scheduled {
			continue
		}
		if !next.After(now) {
			due = append(due, device)
		}
	}
	return due
}

func parseMaintenanceDate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range maintenanceDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
