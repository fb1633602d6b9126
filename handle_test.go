package logcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadHandle_FieldPacking(t *testing.T) {
	h := NewPayloadHandle(0x12345678, 0x9ABC, 0x03, false)

	assert.Equal(t, uint32(0x12345678), h.Offset())
	assert.Equal(t, uint16(0x9ABC), h.Version())
	assert.Equal(t, uint8(0x03), h.BufferID())
	assert.False(t, h.IsDisjointed())
	assert.True(t, h.IsValid())
}

func TestPayloadHandle_Disjointed(t *testing.T) {
	h := NewPayloadHandle(64, 7, 1, true)

	assert.True(t, h.IsDisjointed())

	plain := NewPayloadHandle(64, 7, 1, false)
	assert.False(t, plain.IsDisjointed())

	flagged := plain.AsDisjointed()
	assert.True(t, flagged.IsDisjointed())
	assert.Equal(t, h, flagged)

	// The flag does not disturb the other fields.
	assert.Equal(t, plain.Offset(), flagged.Offset())
	assert.Equal(t, plain.Version(), flagged.Version())
	assert.Equal(t, plain.BufferID(), flagged.BufferID())
}

func TestPayloadHandle_Validity(t *testing.T) {
	assert.False(t, PayloadHandle(0).IsValid(), "zero handle is invalid")

	// A zero version never validates, whatever the other fields hold.
	noVersion := NewPayloadHandle(128, 0, 1, false)
	assert.False(t, noVersion.IsValid())

	valid := NewPayloadHandle(0, 1, 1, false)
	assert.True(t, valid.IsValid(), "offset zero with a version is valid")
}
