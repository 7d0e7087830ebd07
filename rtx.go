package rtpsend

import "rtpsend/pkg/rtp"

// BuildRtxPacket wraps a stored media packet as an RFC 4588 RTX
// packet: the original header is copied verbatim (payload type, SSRC
// and sequence number rewritten afterward), the original sequence
// number is inserted as a 2-byte OSN immediately after the header, and
// the original payload follows unchanged. dst must have room for
// headerLen + 2 + len(payload). Grounded on sender_nack.go's
// resend-as-RTX branch and packet.go's header-field accessors.
func BuildRtxPacket(dst []byte, original []byte, headerLen int, ssrcRTX uint32, seqRTX uint16, payloadTypeRTX int8, originalSeq uint16) (int, error) {
	need := headerLen + 2 + (len(original) - headerLen)
	if len(dst) < need {
		return 0, rtp.ErrShortBuffer{Need: need, Have: len(dst)}
	}

	copy(dst[:headerLen], original[:headerLen])

	if payloadTypeRTX >= 0 {
		rtp.SetPayloadType(dst[:headerLen], uint8(payloadTypeRTX))
	}
	rtp.SetSequenceNumber(dst[:headerLen], seqRTX)
	rtp.SetSSRC(dst[:headerLen], ssrcRTX)

	dst[headerLen] = byte(originalSeq >> 8)
	dst[headerLen+1] = byte(originalSeq)
	copy(dst[headerLen+2:], original[headerLen:])

	return headerLen + 2 + (len(original) - headerLen), nil
}
