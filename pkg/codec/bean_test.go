package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTagRoundTrip(t *testing.T) {
	o := NewOctets()
	o.MarshalTag(5, KindString)
	r := Wrap(o.Bytes())
	require.False(t, r.PeekTerminator())
	tag, kind, err := r.UnmarshalTag()
	require.NoError(t, err)
	require.Equal(t, uint32(5), tag)
	require.Equal(t, KindString, kind)
}

func TestTerminatorDetection(t *testing.T) {
	o := NewOctets()
	o.MarshalTerminator()
	r := Wrap(o.Bytes())
	require.True(t, r.PeekTerminator())
	require.NoError(t, r.UnmarshalTerminator())
}

func TestRecordFieldStreamRoundTrip(t *testing.T) {
	o := NewOctets()
	MarshalRecord(o, func(o *Octets) {
		o.MarshalTag(1, KindInt)
		o.MarshalVarint(42)
		o.MarshalTag(2, KindString)
		o.MarshalString("hello")
	})

	var gotInt int64
	var gotStr string
	r := Wrap(o.Bytes())
	err := UnmarshalRecord(r, func(o *Octets, tag uint32, kind Kind) error {
		switch tag {
		case 1:
			v, err := o.UnmarshalVarint()
			gotInt = v
			return err
		case 2:
			v, err := o.UnmarshalString()
			gotStr = v
			return err
		}
		return o.SkipField(kind)
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), gotInt)
	require.Equal(t, "hello", gotStr)
}

func TestRecordSkipsUnknownTag(t *testing.T) {
	o := NewOctets()
	MarshalRecord(o, func(o *Octets) {
		o.MarshalTag(1, KindInt)
		o.MarshalVarint(1)
		o.MarshalTag(99, KindString)
		o.MarshalString("unknown field from a newer writer")
		o.MarshalTag(2, KindInt)
		o.MarshalVarint(2)
	})

	var seen []uint32
	r := Wrap(o.Bytes())
	err := UnmarshalRecord(r, func(o *Octets, tag uint32, kind Kind) error {
		seen = append(seen, tag)
		switch tag {
		case 1, 2:
			_, err := o.UnmarshalVarint()
			return err
		}
		return o.SkipField(kind)
	})
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 99, 2}, seen)
}

func TestIntListRoundTrip(t *testing.T) {
	o := NewOctets()
	o.MarshalIntList(3, []int64{1, -2, 1000000})
	r := Wrap(o.Bytes())
	_, kind, err := r.UnmarshalTag()
	require.NoError(t, err)
	require.Equal(t, KindVar, kind)
	got, err := r.UnmarshalIntList()
	require.NoError(t, err)
	require.Equal(t, []int64{1, -2, 1000000}, got)
}

func TestStringListRoundTrip(t *testing.T) {
	o := NewOctets()
	o.MarshalStringList(4, []string{"a", "bb", "ccc"})
	r := Wrap(o.Bytes())
	_, _, err := r.UnmarshalTag()
	require.NoError(t, err)
	got, err := r.UnmarshalStringList()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "bb", "ccc"}, got)
}

func TestStringIntMapRoundTrip(t *testing.T) {
	o := NewOctets()
	m := map[string]int64{"x": 1, "y": -2}
	o.MarshalStringIntMap(5, m)
	r := Wrap(o.Bytes())
	_, _, err := r.UnmarshalTag()
	require.NoError(t, err)
	got, err := r.UnmarshalStringIntMap()
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestVarHeaderRejectsReservedKind(t *testing.T) {
	o := NewOctets()
	o.MarshalByte(byte(varReserved))
	_, err := Wrap(o.Bytes()).UnmarshalVarHeader()
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestMapHeaderEncoding(t *testing.T) {
	h := mapHeader(VarString, VarInt)
	require.True(t, isMapHeader(h))
	k, v := splitMapHeader(h)
	require.Equal(t, VarString, k)
	require.Equal(t, VarInt, v)
}
