package geo

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// Method records which resolution step produced a coordinate.
type Method string

const (
	MethodTable     Method = "table"
	MethodSubstring Method = "substring"
	MethodZone      Method = "zone"
)

// Delhi's approximate bounding box. Resolutions outside it are rejected so a
// bad zone label or table entry never places a marker in another state.
const (
	minLat = 28.40
	maxLat = 28.90
	minLon = 76.84
	maxLon = 77.35
)

// Resolve maps a ward name and zone to a coordinate. It is a pure function
// of its inputs: the same ward always lands on the same point, so map
// markers do not jitter across refreshes.
//
// Resolution order: exact table match, substring containment against the
// table, then the zone's base coordinate displaced by a hash of the ward
// name. The hash offset spreads unknown wards across the zone instead of
// stacking them on one point.
func Resolve(name, zone string) (Coordinate, Method, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return Coordinate{}, "", fmt.Errorf("resolve coordinates: empty ward name")
	}

	if c, ok := wardCoordinates[upper]; ok {
		return validated(c, MethodTable, name)
	}

	if c, ok := substringMatch(upper); ok {
		return validated(c, MethodSubstring, name)
	}

	base, ok := zoneCoordinates[canonicalZone(zone)]
	if !ok {
		base = delhiCenter
	}

	latOff, lonOff := hashOffsets(name)
	c := Coordinate{Lat: base.Lat + latOff, Lon: base.Lon + lonOff}
	return validated(c, MethodZone, name)
}

// InBounds reports whether a coordinate lies inside Delhi's bounding box.
func InBounds(c Coordinate) bool {
	return c.Lat >= minLat && c.Lat <= maxLat && c.Lon >= minLon && c.Lon <= maxLon
}

// GridCell buckets a coordinate into a 0.1-degree cell key. Nearby wards
// share a cell so weather lookups can be batched.
func GridCell(c Coordinate) string {
	return fmt.Sprintf("%.1f,%.1f", c.Lat, c.Lon)
}

// CellCenter returns the representative coordinate of the cell containing c.
func CellCenter(c Coordinate) Coordinate {
	return Coordinate{
		Lat: math.Round(c.Lat*10) / 10,
		Lon: math.Round(c.Lon*10) / 10,
	}
}

func substringMatch(upper string) (Coordinate, bool) {
	// Longest table key wins so "JANAK PURI SOUTH" hits "JANAKPURI"-style
	// entries before shorter incidental matches. Equal-length candidates tie
	// on the lexicographically smallest key; map iteration order must never
	// decide the winner.
	var bestKey string
	for key := range wardCoordinates {
		if !strings.Contains(upper, key) && !strings.Contains(key, upper) {
			continue
		}
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
			bestKey = key
		}
	}
	if bestKey == "" {
		return Coordinate{}, false
	}
	return wardCoordinates[bestKey], true
}

// canonicalZone strips the label noise seen in ward data ("South ZoneSouth",
// "West Zone West") down to a key present in zoneCoordinates.
func canonicalZone(zone string) string {
	zone = strings.TrimSpace(zone)
	if _, ok := zoneCoordinates[zone]; ok {
		return zone
	}
	var bestKey string
	for key := range zoneCoordinates {
		if !strings.Contains(zone, key) {
			continue
		}
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
			bestKey = key
		}
	}
	if bestKey != "" {
		return bestKey
	}
	return zone
}

// hashOffsets derives a deterministic displacement in [-0.05, 0.05) degrees
// from the ward name.
func hashOffsets(name string) (float64, float64) {
	h := fnv.New32a()
	h.Write([]byte(name))
	sum := h.Sum32()

	latOff := float64(sum%100)/1000 - 0.05
	lonOff := float64((sum>>8)%100)/1000 - 0.05
	return latOff, lonOff
}

func validated(c Coordinate, m Method, name string) (Coordinate, Method, error) {
	if !InBounds(c) {
		return Coordinate{}, m, fmt.Errorf("resolve coordinates: ward %q resolved outside Delhi bounds (%.4f, %.4f)", name, c.Lat, c.Lon)
	}
	return c, m, nil
}
