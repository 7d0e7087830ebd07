package rtpsend

// PayloadTypeDescriptor describes one entry in the payload-type table:
// mapping from a signed 7-bit payload number to the media settings a
// sender should adopt when it starts using that type. Grounded on
// codec.go's RTPCodec (name/type/clockrate/channels), narrowed to the
// fields CheckPayloadType needs to switch media settings.
type PayloadTypeDescriptor struct {
	Name  string
	Kind  MediaKind
	Audio AudioPayloadInfo
	Video VideoPayloadInfo
}

type AudioPayloadInfo struct {
	ClockRateHz uint32
	Channels    uint16
}

type VideoPayloadInfo struct {
	Codec      string
	MaxRateBps uint32
}

// PayloadTypeTable maps payload numbers to their descriptor, mirroring
// codec.go's CodecList.getCodec linear-scan-by-payload-type contract
// but keyed directly for O(1) lookup since the spec's payload numbers
// are a dense signed 7-bit space.
type PayloadTypeTable map[uint8]PayloadTypeDescriptor

// Lookup finds the descriptor for pt, rejecting negative or unknown
// payload types.
func (t PayloadTypeTable) Lookup(pt int8) (PayloadTypeDescriptor, error) {
	if pt < 0 {
		return PayloadTypeDescriptor{}, &InvalidArgumentError{Err: ErrNegativePayloadType}
	}
	d, ok := t[uint8(pt)]
	if !ok {
		return PayloadTypeDescriptor{}, &InvalidArgumentError{Err: ErrUnknownPayloadType}
	}
	return d, nil
}

// CheckPayloadType decides whether pt is acceptable given the sender's
// current payload type and, for audio, its registered RED payload
// type. The RED bypass only applies when isAudio is true — a video
// sender configured with RedPayloadType for FEC detection (spec.md
// §4.9) must still go through the table lookup/switch for that pt,
// matching rtp_sender.cc's CheckPayloadType which gates its RED check
// behind audio_configured_. It returns the descriptor to switch to
// (zero value if no switch is needed because pt matches the current
// or RED type) and whether a switch occurred.
func CheckPayloadType(table PayloadTypeTable, pt, currentPT, redPT int8, isAudio bool) (desc PayloadTypeDescriptor, switched bool, err error) {
	if isAudio && redPT >= 0 && pt == redPT {
		return PayloadTypeDescriptor{}, false, nil
	}
	if pt == currentPT {
		return PayloadTypeDescriptor{}, false, nil
	}
	desc, err = table.Lookup(pt)
	if err != nil {
		return PayloadTypeDescriptor{}, false, err
	}
	return desc, true, nil
}
