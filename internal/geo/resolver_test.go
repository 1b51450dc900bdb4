package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ExactTableMatch(t *testing.T) {
	c, method, err := Resolve("Karol Bagh", "Central Delhi")
	require.NoError(t, err)

	assert.Equal(t, MethodTable, method)
	assert.InDelta(t, 28.6514, c.Lat, 1e-6)
	assert.InDelta(t, 77.1907, c.Lon, 1e-6)
}

func TestResolve_SubstringMatch(t *testing.T) {
	c, method, err := Resolve("DWARKA SECTOR 10", "West Delhi")
	require.NoError(t, err)

	assert.Equal(t, MethodSubstring, method)
	assert.InDelta(t, 28.5921, c.Lat, 1e-6)
	assert.InDelta(t, 77.0460, c.Lon, 1e-6)
}

func TestResolve_AmbiguousSubstringIsStable(t *testing.T) {
	// "PATEL NAGAR" is contained in both the EAST and WEST table keys, which
	// have equal length. The tie must break on the key, never on map
	// iteration order, so repeated calls cannot move the marker.
	first, method, err := Resolve("PATEL NAGAR", "Central Delhi")
	require.NoError(t, err)
	assert.Equal(t, MethodSubstring, method)
	assert.InDelta(t, 28.6453, first.Lat, 1e-6)
	assert.InDelta(t, 77.1714, first.Lon, 1e-6)

	for i := 0; i < 500; i++ {
		c, _, err := Resolve("PATEL NAGAR", "Central Delhi")
		require.NoError(t, err)
		require.Equal(t, first, c, "call %d moved the marker", i)
	}
}

func TestResolve_ZoneFallbackIsDeterministic(t *testing.T) {
	first, method, err := Resolve("GHONDA XYZ COLONY", "East Delhi")
	require.NoError(t, err)
	assert.Equal(t, MethodZone, method)

	second, _, err := Resolve("GHONDA XYZ COLONY", "East Delhi")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve_ZoneFallbackSpreadsWards(t *testing.T) {
	a, _, err := Resolve("UNKNOWN WARD ONE", "South Delhi")
	require.NoError(t, err)
	b, _, err := Resolve("UNKNOWN WARD TWO", "South Delhi")
	require.NoError(t, err)

	// Different names in the same zone must not collide on one point.
	assert.NotEqual(t, a, b)
}

func TestResolve_NoisyZoneLabel(t *testing.T) {
	c, method, err := Resolve("UNKNOWN WARD", "South ZoneSouth")
	require.NoError(t, err)

	assert.Equal(t, MethodZone, method)
	// Anchored near the South Delhi base, within the jitter envelope.
	assert.InDelta(t, 28.5245, c.Lat, 0.06)
	assert.InDelta(t, 77.2066, c.Lon, 0.06)
}

func TestResolve_UnknownZoneUsesCityCenter(t *testing.T) {
	c, _, err := Resolve("SOMEWHERE NEW", "Trans-Yamuna Special")
	require.NoError(t, err)
	assert.True(t, InBounds(c))
	assert.InDelta(t, 28.6139, c.Lat, 0.06)
}

func TestResolve_TableEntryOutOfBoundsRejected(t *testing.T) {
	// Even a direct table hit gets the bounds check, so a corrupt entry
	// cannot place a marker outside the city.
	wardCoordinates["FAR AWAY TEST WARD"] = Coordinate{Lat: 10, Lon: 10}
	defer delete(wardCoordinates, "FAR AWAY TEST WARD")

	_, method, err := Resolve("Far Away Test Ward", "Central Delhi")
	require.Error(t, err)
	assert.Equal(t, MethodTable, method)
}

func TestResolve_EmptyNameRejected(t *testing.T) {
	_, _, err := Resolve("  ", "Central Delhi")
	require.Error(t, err)
}

func TestResolve_AllResultsInBounds(t *testing.T) {
	names := []string{"NARELA", "SAKET", "NOWHERE A", "NOWHERE B", "NOWHERE C"}
	zones := []string{"North Delhi", "South Delhi", "Najafgarh", "Rohini", "Shahdara"}
	for _, n := range names {
		for _, z := range zones {
			c, _, err := Resolve(n, z)
			require.NoError(t, err, "resolve %s/%s", n, z)
			assert.True(t, InBounds(c), "%s/%s out of bounds: %+v", n, z, c)
		}
	}
}

func TestGridCell(t *testing.T) {
	cell := GridCell(Coordinate{Lat: 28.6514, Lon: 77.1907})
	assert.Equal(t, "28.7,77.2", cell)

	// Wards in the same cell share a key.
	other := GridCell(Coordinate{Lat: 28.6806, Lon: 77.2107})
	assert.Equal(t, cell, other)
}

func TestCellCenter(t *testing.T) {
	c := CellCenter(Coordinate{Lat: 28.6514, Lon: 77.1907})
	assert.InDelta(t, 28.7, c.Lat, 1e-9)
	assert.InDelta(t, 77.2, c.Lon, 1e-9)
}
