/*
Package codec implements the compact binary encoding used for record values
and wire messages: a growable byte buffer (Octets) plus a streaming encoder/
decoder for signed and unsigned variable-length integers, fixed-width floats,
length-prefixed strings/bytes, and a tagged field stream for record (Bean)
bodies.

None of the encodings here are protobuf or gob; they are a small bespoke
scheme chosen for density and for cheap prefix skipping of unknown tags.
*/
package codec

// Octets is an owned, growable byte buffer with a write end (the backing
// slice) and an independent read cursor (pos). Marshal* methods append to
// the buffer; Unmarshal* methods advance pos. A single Octets is typically
// filled by marshaling, then handed to a reader that unmarshals it in place.
type Octets struct {
	buf []byte
	pos int
}

// NewOctets returns an empty, write-only Octets ready for Marshal* calls.
func NewOctets() *Octets {
	return &Octets{}
}

// Wrap returns an Octets positioned at the start of an existing byte slice,
// ready for Unmarshal* calls. The slice is not copied.
func Wrap(b []byte) *Octets {
	return &Octets{buf: b}
}

// Bytes returns the full backing slice (written bytes), regardless of the
// read cursor.
func (o *Octets) Bytes() []byte { return o.buf }

// Pos returns the current read cursor.
func (o *Octets) Pos() int { return o.pos }

// SetPos repositions the read cursor.
func (o *Octets) SetPos(pos int) { o.pos = pos }

// Remaining returns how many unread bytes are left.
func (o *Octets) Remaining() int { return len(o.buf) - o.pos }

// Reset clears the buffer and cursor for reuse.
func (o *Octets) Reset() {
	o.buf = o.buf[:0]
	o.pos = 0
}

func (o *Octets) append(b ...byte) {
	o.buf = append(o.buf, b...)
}

// MarshalBytes appends a raw byte slice with no length prefix.
func (o *Octets) MarshalBytes(b []byte) {
	o.buf = append(o.buf, b...)
}

// need validates that n unread bytes are available, returning ErrUnderflow
// otherwise.
func (o *Octets) need(n int) error {
	if o.Remaining() < n {
		return ErrUnderflow
	}
	return nil
}

// UnmarshalBytes reads exactly n raw bytes and advances the cursor. The
// returned slice aliases the underlying buffer.
func (o *Octets) UnmarshalBytes(n int) ([]byte, error) {
	if err := o.need(n); err != nil {
		return nil, err
	}
	b := o.buf[o.pos : o.pos+n]
	o.pos += n
	return b, nil
}

// MarshalByte appends a single raw byte.
func (o *Octets) MarshalByte(b byte) {
	o.buf = append(o.buf, b)
}

// UnmarshalByte reads a single raw byte.
func (o *Octets) UnmarshalByte() (byte, error) {
	if err := o.need(1); err != nil {
		return 0, err
	}
	b := o.buf[o.pos]
	o.pos++
	return b, nil
}

// MarshalString appends a length-prefixed (uvarint) UTF-8 string.
func (o *Octets) MarshalString(s string) {
	o.MarshalUvarint32(uint32(len(s)))
	o.buf = append(o.buf, s...)
}

// UnmarshalString reads a length-prefixed string.
func (o *Octets) UnmarshalString() (string, error) {
	n, err := o.UnmarshalUvarint32()
	if err != nil {
		return "", err
	}
	b, err := o.UnmarshalBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MarshalOctets appends a length-prefixed (uvarint) byte slice.
func (o *Octets) MarshalOctets(b []byte) {
	o.MarshalUvarint32(uint32(len(b)))
	o.buf = append(o.buf, b...)
}

// UnmarshalOctets reads a length-prefixed byte slice. The returned slice is
// a copy, safe to retain past the lifetime of the source buffer.
func (o *Octets) UnmarshalOctets() ([]byte, error) {
	n, err := o.UnmarshalUvarint32()
	if err != nil {
		return nil, err
	}
	b, err := o.UnmarshalBytes(int(n))
	if err != nil {
		return nil, err
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}
