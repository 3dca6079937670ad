package geohash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode_KnownValue(t *testing.T) {
	t.Parallel()
	// Paris city centre, precision 6.
	got := Encode(48.8566, 2.3522, 6)
	require.Len(t, got, 6)
	require.Equal(t, "u09tvw", got)
}

func TestEncode_PrecisionControlsLength(t *testing.T) {
	t.Parallel()
	for _, p := range []int{1, 4, 8, 12} {
		got := Encode(0, 0, p)
		require.Len(t, got, p)
	}
}

func TestEncode_NearbyPointsShareAPrefix(t *testing.T) {
	t.Parallel()
	a := Encode(48.8566, 2.3522, 6)
	b := Encode(48.8567, 2.3523, 6)
	require.Equal(t, a[:4], b[:4])
}
