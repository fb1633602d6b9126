package logcore

// PayloadHandle is an opaque reference to a payload block owned by the
// memory manager. It packs [offset:32][version:16][bufferId:8][flags:8] into
// a single 64-bit value so that validity can be checked against the block's
// stamped version instead of trusted blindly, and so the value stays
// meaningful while buffers are resized and drained.
//
// The zero value is invalid. A handle becomes permanently unusable once its
// block is released and reclaimed: the next allocation at that offset stamps
// a different version, and every retrieval re-validates the stamp.
type PayloadHandle uint64

// handleFlagDisjointed marks a handle whose block stores the handles of a
// multi-part payload rather than message bytes.
const handleFlagDisjointed = 0x01

// NewPayloadHandle packs the handle fields into a single value.
func NewPayloadHandle(offset uint32, version uint16, bufferID uint8, disjointed bool) PayloadHandle {
	var flags uint8
	if disjointed {
		flags = handleFlagDisjointed
	}

	return PayloadHandle(uint64(offset)<<32 | uint64(version)<<16 | uint64(bufferID)<<8 | uint64(flags))
}

// Offset returns the byte offset of the block inside its ring buffer.
func (h PayloadHandle) Offset() uint32 {
	return uint32(h >> 32)
}

// Version returns the version the block was stamped with at allocation time.
func (h PayloadHandle) Version() uint16 {
	return uint16(h >> 16)
}

// BufferID identifies which ring buffer the block was minted from.
func (h PayloadHandle) BufferID() uint8 {
	return uint8(h >> 8)
}

// IsDisjointed reports whether the handle references a multi-part payload.
func (h PayloadHandle) IsDisjointed() bool {
	return uint8(h)&handleFlagDisjointed != 0
}

// AsDisjointed returns a copy of the handle with the disjointed flag set.
func (h PayloadHandle) AsDisjointed() PayloadHandle {
	return h | handleFlagDisjointed
}

// IsValid reports whether the handle could reference a live block. It is a
// cheap structural check; retrieval still validates against the live block
// header.
func (h PayloadHandle) IsValid() bool {
	return h != 0 && h.Version() != 0
}
