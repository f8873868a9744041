// Package record defines the Bean contract: a typed, code-generated-shaped
// value with a stable type id and a tagged-field binary encoding, plus the
// save-state lifecycle that Table and SContext track for cached instances.
package record

import "github.com/cuemby/beandb/pkg/codec"

// SaveState is the lifecycle state of a cached record instance.
type SaveState int

const (
	// UNMANAGED is a freshly constructed value not yet known to any Table.
	UNMANAGED SaveState = iota
	// SHARED is the canonical cached instance, read-only to callers.
	SHARED
	// DIRTY is queued in a Table's modified-map awaiting flush.
	DIRTY
)

func (s SaveState) String() string {
	switch s {
	case UNMANAGED:
		return "UNMANAGED"
	case SHARED:
		return "SHARED"
	case DIRTY:
		return "DIRTY"
	default:
		return "UNKNOWN"
	}
}

// Bean is a typed record value. Implementations are normally produced by a
// schema code generator (out of scope here); this package only defines the
// contract Table, SContext and the checkpoint pipeline rely on.
type Bean interface {
	// TypeID is the stable identifier used to route decoded records to the
	// right concrete type.
	TypeID() uint32
	// InitSize is a size hint for a freshly allocated Octets buffer.
	InitSize() int
	// MaxSize bounds the largest encoded size this type can produce.
	MaxSize() int
	// Marshal appends the tagged field stream for this value.
	Marshal(o *codec.Octets) error
	// Unmarshal replaces this value's fields by decoding a tagged field
	// stream; fields absent from the stream are left at their zero value.
	// The receiver may be a live instance: sctx's whole-value undo restores
	// a snapshot into the same instance this way.
	Unmarshal(o *codec.Octets) error
	// Create returns a new, empty instance of the same concrete type.
	Create() Bean
	// Clone returns a deep copy of this value.
	Clone() Bean
	// Equal reports field-wise equality with another Bean of the same type.
	Equal(other Bean) bool
}

// SaveStateHolder is implemented by generated Bean types that track their
// own lifecycle state inline (avoiding a side-table in Table).
type SaveStateHolder interface {
	State() SaveState
	SetState(SaveState)
}

const recordFormat = 0x00

// MarshalValue writes the Storage value-layout for a Bean: a format byte
// followed by its tagged field stream.
func MarshalValue(b Bean) []byte {
	o := codec.NewOctets()
	o.MarshalByte(recordFormat)
	// Errors from Marshal on a well-formed Bean only occur for unsupported
	// container kinds, which generated code never produces; propagate by
	// panic would be wrong here, so keep the narrow io-less contract: a
	// Bean.Marshal failure is a programming error surfaced by Unmarshal's
	// symmetric counterpart during round-trip tests, not at this layer.
	_ = b.Marshal(o)
	return o.Bytes()
}

// UnmarshalValue decodes the Storage value-layout into a fresh instance
// produced by stub.Create().
func UnmarshalValue(stub Bean, raw []byte) (Bean, error) {
	o := codec.Wrap(raw)
	format, err := o.UnmarshalByte()
	if err != nil {
		return nil, err
	}
	if format != recordFormat {
		return nil, codec.ErrBadFormat
	}
	v := stub.Create()
	if err := v.Unmarshal(o); err != nil {
		return nil, err
	}
	return v, nil
}
