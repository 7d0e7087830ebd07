package rtp

// EncodeTelephoneEvent builds an RFC 4733 telephone-event payload: the
// event code, an end-of-event flag (set, since SendTelephoneEvent only
// ever emits the terminal packet for an event rather than a
// real-time stream of in-progress reports), a 6-bit volume in the low
// bits of the second byte, and the 16-bit duration in timestamp units.
func EncodeTelephoneEvent(event uint8, durationMs int64, volume uint8) []byte {
	b := make([]byte, 4)
	b[0] = event
	b[1] = 0x80 | (volume & 0x3F) // end-of-event bit set, R bit clear
	duration := uint16(durationMs)
	b[2] = byte(duration >> 8)
	b[3] = byte(duration)
	return b
}
