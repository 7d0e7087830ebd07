package codecs

// VP8Payloader fragments a VP8 frame into MTU-sized payloads, each
// prefixed with the minimal required one-byte VP8 payload descriptor
// (S set on the first fragment, PID always 0 — no extended control
// bits, no picture ID). Adapted from the bitfield layout the teacher's
// VP8 receive-side parser expects, run in reverse to produce it.
type VP8Payloader struct{}

const vp8DescriptorLength = 1

// Payload fragments payload into one or more MTU-sized byte slices,
// each carrying the one-byte VP8 payload descriptor.
func (p *VP8Payloader) Payload(mtu int, payload []byte) [][]byte {
	if mtu <= vp8DescriptorLength || len(payload) == 0 {
		return nil
	}

	maxFragmentSize := mtu - vp8DescriptorLength
	var payloads [][]byte
	for off := 0; off < len(payload); off += maxFragmentSize {
		end := off + maxFragmentSize
		if end > len(payload) {
			end = len(payload)
		}

		descriptor := byte(0)
		if off == 0 {
			descriptor |= 0x10 // S: start of VP8 partition
		}

		out := make([]byte, 1+(end-off))
		out[0] = descriptor
		copy(out[1:], payload[off:end])
		payloads = append(payloads, out)
	}

	return payloads
}
