// Package codecs holds reference Payloader implementations standing in
// for the spec's pluggable audio/video packetizers. Each Opus frame
// already fits a single RTP payload; OpusPayloader never fragments.
package codecs

// OpusPayloader payloads Opus frames. Each call to Payload yields
// exactly one packet boundary: Opus frames are never fragmented across
// packets.
type OpusPayloader struct{}

// Payload returns the frame unchanged as the sole RTP payload.
func (p *OpusPayloader) Payload(mtu int, payload []byte) [][]byte {
	out := make([]byte, len(payload))
	copy(out, payload)
	return [][]byte{out}
}
