package rtp

import "encoding/binary"

// ExtensionKind is the closed set of header extensions the sender
// knows how to emit and rewrite in place.
type ExtensionKind int

const (
	ExtensionTransmissionTimeOffset ExtensionKind = iota
	ExtensionAudioLevel
	ExtensionAbsoluteSendTime
)

// extension payload lengths in bytes (the TLV's "len" field is this
// minus one, per RFC 5285).
func (k ExtensionKind) payloadLength() int {
	switch k {
	case ExtensionTransmissionTimeOffset:
		return 3
	case ExtensionAudioLevel:
		return 3 // 1 data byte + 2 zero pad bytes, see BUILD_EXTENSIONS_VALUES.md
	case ExtensionAbsoluteSendTime:
		return 3
	default:
		return 0
	}
}

type registeredExtension struct {
	kind        ExtensionKind
	id          uint8
	blockOffset int // offset within the extension block's TLV area, not including the 4-byte 0xBEDE+length header
}

// ExtensionMap is a registry keyed by extension kind, storing each
// extension's 4-bit id and the byte offset of its payload within the
// extension block. Registration order is preserved (it determines
// offsets and emission order) — a small ordered slice is enough for
// the at-most-14 entries the format allows.
//
// Mirrors the id-keyed RTPHeaderExtension{URI, ID} registration shape
// from streaminfo.go, generalized to also track each entry's computed
// block offset so UpdateExtension can locate it later without
// re-walking the TLV chain.
type ExtensionMap struct {
	entries []registeredExtension
}

// Register adds or replaces the id for kind and recomputes offsets.
func (m *ExtensionMap) Register(kind ExtensionKind, id uint8) {
	for i := range m.entries {
		if m.entries[i].kind == kind {
			m.entries[i].id = id
			m.recomputeOffsets()
			return
		}
	}
	m.entries = append(m.entries, registeredExtension{kind: kind, id: id})
	m.recomputeOffsets()
}

// Deregister removes kind from the registry.
func (m *ExtensionMap) Deregister(kind ExtensionKind) {
	for i := range m.entries {
		if m.entries[i].kind == kind {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			m.recomputeOffsets()
			return
		}
	}
}

// IsRegistered reports whether kind has an id assigned.
func (m *ExtensionMap) IsRegistered(kind ExtensionKind) bool {
	_, ok := m.find(kind)
	return ok
}

// GetID returns the 4-bit id registered for kind, or (0, false).
func (m *ExtensionMap) GetID(kind ExtensionKind) (uint8, bool) {
	e, ok := m.find(kind)
	if !ok {
		return 0, false
	}
	return e.id, true
}

// GetBlockStartOffset returns the byte offset of kind's TLV within the
// extension block (counted from the first byte after the 4-byte
// 0xBEDE+length header), or (0, false) if unregistered.
func (m *ExtensionMap) GetBlockStartOffset(kind ExtensionKind) (int, bool) {
	e, ok := m.find(kind)
	if !ok {
		return 0, false
	}
	return e.blockOffset, true
}

func (m *ExtensionMap) find(kind ExtensionKind) (registeredExtension, bool) {
	for _, e := range m.entries {
		if e.kind == kind {
			return e, true
		}
	}
	return registeredExtension{}, false
}

func (m *ExtensionMap) recomputeOffsets() {
	off := 0
	for i := range m.entries {
		m.entries[i].blockOffset = off
		off += 1 + m.entries[i].kind.payloadLength() // 1 TLV id/len byte + payload
	}
}

// Len returns the number of registered extensions.
func (m *ExtensionMap) Len() int { return len(m.entries) }

// RegisteredIDs returns the id each currently registered extension was
// given, in registration order, so a caller can validate the full set
// (e.g. the 1..14 range RFC 5285's one-byte header allows) without
// reaching into the unexported entry list.
func (m *ExtensionMap) RegisteredIDs() []uint8 {
	ids := make([]uint8, len(m.entries))
	for i, e := range m.entries {
		ids[i] = e.id
	}
	return ids
}

// MaxBlockLength returns the worst-case byte length of the extension
// block BuildExtensionBlock could emit for the current registrations
// (every entry present, padded to a multiple of 4), letting callers
// reserve header room before any per-packet value is known.
func (m *ExtensionMap) MaxBlockLength() int {
	if len(m.entries) == 0 {
		return 0
	}
	total := 0
	for _, e := range m.entries {
		total += 1 + e.kind.payloadLength()
	}
	return 4 + ((total + 3) / 4 * 4)
}

// ExtensionValue renders one extension's wire value. Implementations
// live in extension_values.go.
type ExtensionValue func(nowMs, captureTimeMs int64) []byte

// BuildExtensionBlock emits 0xBEDE + length-in-u32s, then each
// registered extension's TLV in registration order, calling valueOf to
// produce each extension's payload bytes. Returns 0 (and writes
// nothing) if no extensions are registered or none produced a value.
func (m *ExtensionMap) BuildExtensionBlock(dst []byte, valueOf func(kind ExtensionKind) []byte) int {
	if len(m.entries) == 0 {
		return 0
	}

	payload := dst[4:]
	off := 0
	wrote := false
	for _, e := range m.entries {
		v := valueOf(e.kind)
		if v == nil {
			continue
		}
		payload[off] = (e.id << 4) | uint8(len(v)-1)
		off++
		copy(payload[off:], v)
		off += len(v)
		wrote = true
	}

	if !wrote {
		return 0
	}

	for off%4 != 0 {
		payload[off] = 0
		off++
	}

	binary.BigEndian.PutUint16(dst[0:], ExtensionMagic)
	binary.BigEndian.PutUint16(dst[2:], uint16(off/4))
	return 4 + off
}

// UpdateExtension rewrites a single extension's value in place on a
// serialized packet. If any precondition fails — the packet's
// extension magic is missing, the registered block offset + length
// runs past packetLength or headerLength, or the TLV id/len byte
// doesn't match what's registered for kind — the call is a no-op. This
// lets the send boundary call UpdateExtension unconditionally (spec
// §4.1/§7: "not registered" is a silent WARN, never an error).
func (m *ExtensionMap) UpdateExtension(buf []byte, packetLength, headerLength int, kind ExtensionKind, value []byte) bool {
	e, ok := m.find(kind)
	if !ok {
		return false
	}

	extBlockStart := ExtensionBlockOffset(buf)
	if extBlockStart+4 > len(buf) {
		return false
	}
	if binary.BigEndian.Uint16(buf[extBlockStart:]) != ExtensionMagic {
		return false
	}

	tlvStart := extBlockStart + 4 + e.blockOffset
	if tlvStart+1+len(value) > packetLength || tlvStart+1+len(value) > headerLength {
		return false
	}

	wantIDLen := (e.id << 4) | uint8(len(value)-1)
	if buf[tlvStart] != wantIDLen {
		return false
	}

	copy(buf[tlvStart+1:], value)
	return true
}
