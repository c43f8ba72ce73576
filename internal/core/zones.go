package core

import "strings"

const zoneSeparator = ","

// SplitZones parses a comma-delimited availability zone string.
func SplitZones(zones string) []string {
	if zones == "" {
		return nil
	}
	return strings.Split(zones, zoneSeparator)
}

// AddZone appends zone unless it is blank or already present.
func AddZone(zones, zone string) string {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return zones
	}
	current := SplitZones(zones)
	for _, z := range current {
		if z == zone {
			return zones
		}
	}
	return strings.Join(append(current, zone), zoneSeparator)
}

// RemoveZone drops every occurrence of zone.
func RemoveZone(zones, zone string) string {
	current := SplitZones(zones)
	kept := current[:0:0]
	for _, z := range current {
		if z != zone {
			kept = append(kept, z)
		}
	}
	return strings.Join(kept, zoneSeparator)
}

// ZonesPtr converts an empty zone string to the API's null.
func ZonesPtr(zones string) *string {
	if zones == "" {
		return nil
	}
	return &zones
}
