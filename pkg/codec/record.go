package codec

// FieldWriter is the callback shape used by MarshalRecord: for each present
// field it writes the tag header then the field payload, in ascending tag
// order (ascending tag order is not load-bearing for correctness but keeps
// encoded records byte-stable across runs of the same value).
type FieldWriter func(o *Octets)

// MarshalRecord writes a tagged field stream: each write appends its own
// tag header via MarshalTag, and MarshalRecord appends the terminator.
func MarshalRecord(o *Octets, write FieldWriter) {
	write(o)
	o.MarshalTerminator()
}

// FieldReader is called once per present field with its decoded tag and
// kind; it must consume exactly that field's payload (via the matching
// Unmarshal* call, or SkipField for an unrecognized tag).
type FieldReader func(o *Octets, tag uint32, kind Kind) error

// UnmarshalRecord reads fields until the terminator, dispatching each to
// read via FieldReader.
func UnmarshalRecord(o *Octets, read FieldReader) error {
	for !o.PeekTerminator() {
		tag, kind, err := o.UnmarshalTag()
		if err != nil {
			return err
		}
		if err := read(o, tag, kind); err != nil {
			return err
		}
	}
	return o.UnmarshalTerminator()
}

// MarshalIntList writes a KindVar list of ints under the given tag.
func (o *Octets) MarshalIntList(tag uint32, vs []int64) {
	o.MarshalTag(tag, KindVar)
	o.MarshalListHeader(VarInt)
	o.MarshalUvarint32(uint32(len(vs)))
	for _, v := range vs {
		o.MarshalVarint(v)
	}
}

// UnmarshalIntList reads the payload of a KindVar int list (the tag header
// must already have been consumed).
func (o *Octets) UnmarshalIntList() ([]int64, error) {
	hdr, err := o.UnmarshalVarHeader()
	if err != nil {
		return nil, err
	}
	if hdr.IsMap || hdr.Elem != VarInt {
		return nil, ErrBadFormat
	}
	n, err := o.UnmarshalUvarint32()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := o.UnmarshalVarint()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// MarshalStringList writes a KindVar list of strings under the given tag.
func (o *Octets) MarshalStringList(tag uint32, vs []string) {
	o.MarshalTag(tag, KindVar)
	o.MarshalListHeader(VarString)
	o.MarshalUvarint32(uint32(len(vs)))
	for _, v := range vs {
		o.MarshalString(v)
	}
}

// UnmarshalStringList reads the payload of a KindVar string list.
func (o *Octets) UnmarshalStringList() ([]string, error) {
	hdr, err := o.UnmarshalVarHeader()
	if err != nil {
		return nil, err
	}
	if hdr.IsMap || hdr.Elem != VarString {
		return nil, ErrBadFormat
	}
	n, err := o.UnmarshalUvarint32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := o.UnmarshalString()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// MarshalStringIntMap writes a KindVar homogeneous map[string]int64 under
// the given tag.
func (o *Octets) MarshalStringIntMap(tag uint32, m map[string]int64) {
	o.MarshalTag(tag, KindVar)
	o.MarshalMapHeader(VarString, VarInt)
	o.MarshalUvarint32(uint32(len(m)))
	for k, v := range m {
		o.MarshalString(k)
		o.MarshalVarint(v)
	}
}

// UnmarshalStringIntMap reads the payload of a KindVar map[string]int64.
func (o *Octets) UnmarshalStringIntMap() (map[string]int64, error) {
	hdr, err := o.UnmarshalVarHeader()
	if err != nil {
		return nil, err
	}
	if !hdr.IsMap || hdr.Key != VarString || hdr.Value != VarInt {
		return nil, ErrBadFormat
	}
	n, err := o.UnmarshalUvarint32()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, n)
	for i := uint32(0); i < n; i++ {
		k, err := o.UnmarshalString()
		if err != nil {
			return nil, err
		}
		v, err := o.UnmarshalVarint()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
