package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPairRoundTrip(t *testing.T) {
	p := &Pair{Value1: 3, Value2: 8}
	raw := MarshalValue(p)

	got, err := UnmarshalValue(&Pair{}, raw)
	require.NoError(t, err)
	require.True(t, p.Equal(got))
}

func TestPairCloneIndependence(t *testing.T) {
	p := &Pair{Value1: 1, Value2: 2}
	c := p.Clone().(*Pair)
	c.Value1 = 99
	require.Equal(t, int64(1), p.Value1)
}

func TestProfileRoundTrip(t *testing.T) {
	p := &Profile{
		Name:   "alice",
		Friend: &Pair{Value1: 3, Value2: 8},
		Tags:   []string{"admin", "beta"},
		Scores: map[string]int64{"math": 90, "art": -5},
	}
	raw := MarshalValue(p)

	got, err := UnmarshalValue(&Profile{}, raw)
	require.NoError(t, err)
	require.True(t, p.Equal(got))
}

func TestProfileCloneDeepCopiesContainers(t *testing.T) {
	p := &Profile{
		Tags:   []string{"a"},
		Scores: map[string]int64{"x": 1},
	}
	c := p.Clone().(*Profile)
	c.Tags[0] = "b"
	c.Scores["x"] = 2
	require.Equal(t, "a", p.Tags[0])
	require.Equal(t, int64(1), p.Scores["x"])
}

func TestSaveStateString(t *testing.T) {
	require.Equal(t, "UNMANAGED", UNMANAGED.String())
	require.Equal(t, "SHARED", SHARED.String())
	require.Equal(t, "DIRTY", DIRTY.String())
}

func TestUnmarshalValueRejectsBadFormat(t *testing.T) {
	_, err := UnmarshalValue(&Pair{}, []byte{0x01})
	require.Error(t, err)
}
