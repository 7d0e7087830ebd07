package rtpsend

import "sync"

// StreamDataCounters mirrors the field names of the teacher's
// OutboundRTPStreamStats: per-stream packet/byte counters split out by
// retransmission and FEC so a primary SSRC and its RTX SSRC each get
// their own StreamDataCounters.
type StreamDataCounters struct {
	PacketsSent              uint32
	BytesSent                uint64
	HeaderBytesSent          uint64
	PaddingBytesSent         uint64
	RetransmittedPacketsSent uint32
	RetransmittedBytesSent   uint64
	FECPacketsSent           uint32

	// bitrateBytes accumulates the full on-wire size of every packet,
	// retransmissions included, feeding the bitrate observer — unlike
	// BytesSent, which excludes header/padding and retransmissions.
	bitrateBytes uint64
}

// statsTracker accumulates StreamDataCounters for the primary and RTX
// streams behind its own lock, independent of the sender's send_lock —
// stats bookkeeping must never block the send path and vice versa.
type statsTracker struct {
	mu       sync.Mutex
	media    StreamDataCounters
	rtx      StreamDataCounters
	redPT    int8
	fecPT    int8
	isVideo  bool
}

func newStatsTracker(isVideo bool, redPT, fecPT int8) *statsTracker {
	return &statsTracker{isVideo: isVideo, redPT: redPT, fecPT: fecPT}
}

// recordSent folds one just-transmitted packet into the counters:
// packets and the bitrate accumulator always advance; a retransmission
// only advances RetransmittedPacketsSent/RetransmittedBytesSent, while
// a first-time send advances BytesSent/HeaderBytesSent/PaddingBytesSent.
// isFEC is only meaningful for video, detected via isForwardErrorCorrection.
func (s *statsTracker) recordSent(isRTX, isRetransmission, isFEC bool, headerLen, payloadLen, paddingLen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.media
	if isRTX {
		c = &s.rtx
	}

	size := headerLen + payloadLen + paddingLen
	c.PacketsSent++
	c.bitrateBytes += uint64(size)

	if isFEC {
		c.FECPacketsSent++
	}

	if isRetransmission {
		c.RetransmittedPacketsSent++
		c.RetransmittedBytesSent += uint64(size)
		return
	}
	c.BytesSent += uint64(payloadLen)
	c.HeaderBytesSent += uint64(headerLen)
	c.PaddingBytesSent += uint64(paddingLen)
}

// snapshot returns copies of the current primary/RTX counters.
func (s *statsTracker) snapshot() (media, rtx StreamDataCounters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media, s.rtx
}

// isForwardErrorCorrection reports whether a just-built packet is a RED/FEC
// carrier: video only, the packet's payload type equals the configured RED
// payload type, and the first payload byte (the RED block header) equals
// the configured FEC payload type.
func (s *statsTracker) isForwardErrorCorrection(payloadType uint8, payload []byte) bool {
	if !s.isVideo || s.redPT < 0 || s.fecPT < 0 {
		return false
	}
	if int8(payloadType) != s.redPT {
		return false
	}
	if len(payload) == 0 {
		return false
	}
	return int8(payload[0]&0x7F) == s.fecPT
}
