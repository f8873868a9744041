package codec

// Kind identifies the payload shape of a tagged record field.
type Kind uint32

const (
	KindInt    Kind = 0
	KindString Kind = 1
	KindBean   Kind = 2
	KindVar    Kind = 3
)

// VarKind identifies the element type of a VAR (list/map) field, carried in
// the 1-byte sub-header that follows a KindVar tag.
type VarKind byte

const (
	VarInt      VarKind = 0
	VarString   VarKind = 1
	VarBean     VarKind = 2
	varReserved VarKind = 3
	VarFloat32  VarKind = 4
	VarFloat64  VarKind = 5
)

// mapHeader returns the 1-byte VAR sub-header for a homogeneous map from
// keyKind to valueKind: values 0x80..0xFF = (key_kind<<3|value_kind).
func mapHeader(key, value VarKind) byte {
	return 0x80 | byte(key)<<3 | byte(value)
}

func isMapHeader(h byte) bool { return h&0x80 != 0 }

func splitMapHeader(h byte) (key, value VarKind) {
	return VarKind((h >> 3) & 0x7), VarKind(h & 0x7)
}

// MarshalTag appends a field tag: uvarint(tag<<2 | kind). Tag 0 is reserved
// for the stream terminator and is never used by a real field.
func (o *Octets) MarshalTag(tag uint32, kind Kind) {
	o.MarshalUvarint32(tag<<2 | uint32(kind))
}

// PeekTerminator reports whether the next byte is the single zero byte that
// ends a tagged field stream, without consuming it. Callers check this
// before calling UnmarshalTag.
func (o *Octets) PeekTerminator() bool {
	return o.Remaining() > 0 && o.buf[o.pos] == 0
}

// MarshalTerminator appends the single zero byte that ends a tagged field
// stream.
func (o *Octets) MarshalTerminator() {
	o.append(0)
}

// UnmarshalTerminator consumes the terminator byte.
func (o *Octets) UnmarshalTerminator() error {
	b, err := o.UnmarshalByte()
	if err != nil {
		return err
	}
	if b != 0 {
		return ErrBadFormat
	}
	return nil
}

// UnmarshalTag reads a field tag header. Callers must first rule out the
// terminator with PeekTerminator.
func (o *Octets) UnmarshalTag() (tag uint32, kind Kind, err error) {
	v, err := o.UnmarshalUvarint32()
	if err != nil {
		return 0, 0, err
	}
	if v == 0 {
		return 0, 0, ErrBadFormat
	}
	return v >> 2, Kind(v & 0x3), nil
}

// MarshalListHeader appends a VAR sub-header for a homogeneous list.
func (o *Octets) MarshalListHeader(elem VarKind) {
	o.MarshalByte(byte(elem))
}

// MarshalMapHeader appends a VAR sub-header for a homogeneous map.
func (o *Octets) MarshalMapHeader(key, value VarKind) {
	o.MarshalByte(mapHeader(key, value))
}

// VarHeader describes a decoded VAR sub-header: either a homogeneous list
// (IsMap false, Elem valid) or a homogeneous map (IsMap true, Key/Value
// valid).
type VarHeader struct {
	IsMap bool
	Elem  VarKind
	Key   VarKind
	Value VarKind
}

// UnmarshalVarHeader reads and validates the 1-byte VAR sub-header.
func (o *Octets) UnmarshalVarHeader() (VarHeader, error) {
	h, err := o.UnmarshalByte()
	if err != nil {
		return VarHeader{}, err
	}
	if isMapHeader(h) {
		k, v := splitMapHeader(h)
		if k == varReserved || v == varReserved {
			return VarHeader{}, ErrBadFormat
		}
		return VarHeader{IsMap: true, Key: k, Value: v}, nil
	}
	elem := VarKind(h)
	if elem > VarFloat64 || elem == varReserved {
		return VarHeader{}, ErrBadFormat
	}
	return VarHeader{Elem: elem}, nil
}

// SkipField skips the payload of a field whose tag/kind has already been
// read, without interpreting its contents. Used to preserve forward
// compatibility with unknown tags.
func (o *Octets) SkipField(kind Kind) error {
	switch kind {
	case KindInt:
		_, err := o.UnmarshalVarint()
		return err
	case KindString:
		_, err := o.UnmarshalString()
		return err
	case KindBean:
		_, err := o.UnmarshalOctets()
		return err
	case KindVar:
		return o.skipVar()
	}
	return ErrBadFormat
}

func (o *Octets) skipVar() error {
	hdr, err := o.UnmarshalVarHeader()
	if err != nil {
		return err
	}
	n, err := o.UnmarshalUvarint32()
	if err != nil {
		return err
	}
	if hdr.IsMap {
		for i := uint32(0); i < n; i++ {
			if err := o.skipElem(hdr.Key); err != nil {
				return err
			}
			if err := o.skipElem(hdr.Value); err != nil {
				return err
			}
		}
		return nil
	}
	for i := uint32(0); i < n; i++ {
		if err := o.skipElem(hdr.Elem); err != nil {
			return err
		}
	}
	return nil
}

func (o *Octets) skipElem(k VarKind) error {
	switch k {
	case VarInt:
		_, err := o.UnmarshalVarint()
		return err
	case VarString:
		_, err := o.UnmarshalString()
		return err
	case VarBean:
		_, err := o.UnmarshalOctets()
		return err
	case VarFloat32:
		_, err := o.UnmarshalFloat32()
		return err
	case VarFloat64:
		_, err := o.UnmarshalFloat64()
		return err
	}
	return ErrBadFormat
}
