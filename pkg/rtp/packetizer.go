package rtp

// Payloader fragments one coded frame into the ordered sequence of RTP
// payload byte slices that will become one or more packets. A codec's
// packetizer is a pluggable producer of payload bytes plus packet
// boundaries; the sender core never inspects payload contents, it only
// asks the payloader for packet boundaries and marks the last one with
// the marker bit.
type Payloader interface {
	Payload(mtu int, payload []byte) [][]byte
}
