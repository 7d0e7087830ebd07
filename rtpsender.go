package rtpsend

import (
	"sync"

	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pion/rtcp"

	"rtpsend/pkg/history"
	"rtpsend/pkg/nack"
	"rtpsend/pkg/rtp"
)

// RtpState is a snapshot of the counters an outer controller needs to
// checkpoint and later restore a Sender across a renegotiation,
// mirroring the {sequence_number, start_timestamp, timestamp,
// capture_time_ms, last_timestamp_time_ms, media_has_been_sent} tuple.
type RtpState struct {
	SequenceNumber      uint16
	StartTimestamp      uint32
	Timestamp           uint32
	CaptureTimeMs       int64
	LastTimestampTimeMs int64
	MediaHasBeenSent    bool
}

// AudioLevelInfo carries the optional per-frame audio-level extension
// payload for SendOutgoingData; nil means "don't stamp the extension".
type AudioLevelInfo struct {
	VoiceActivity bool
	DBov          uint8
}

// RtxRtpState is the RTX stream's own checkpointable state, kept
// separate from RtpState because the primary and RTX streams run
// independent sequence-number spaces (rtp_sender.cc keeps
// SetRtxRtpState/GetRtxRtpState distinct from SetRtpState/GetRtpState
// for exactly this reason).
type RtxRtpState struct {
	SequenceNumber uint16
}

// Sender is the packet construction/transmission/retransmission state
// machine: it owns one media SSRC (and, if RTX is enabled, one RTX
// SSRC), assigns sequence numbers and RTP timestamps, drives a
// pluggable Payloader, and routes built packets through the packet
// history to the pacer or directly to the transport. Grounded on
// rtpsender.go's struct shape (an RWMutex-guarded bundle of send state)
// and rtpsenderpacing.go's SendRTP/transport split, generalized from a
// fixed SRTP/DTLS pipeline to the spec's pluggable Pacer/Transport/Clock
// contracts.
type Sender struct {
	cfg       Config
	clock     Clock
	pacer     Pacer
	transport Transport
	observers Observers
	channelID int
	log       logging.LeveledLogger

	history     *history.History
	nackLimiter *nack.Limiter
	delays      *delayWindow
	stats       *statsTracker

	// sendMu guards every field below: the sequence-number/timestamp
	// bookkeeping, payload-type switching, and rtx_mode/target_bitrate.
	// Never held while calling an observer (see observer.go).
	sendMu sync.Mutex

	ssrc    uint32
	ssrcRTX uint32
	seq     uint16
	seqRTX  uint16

	startTimestamp      uint32
	timestamp           uint32
	captureTimeMs       int64
	lastTimestampTimeMs int64

	payloadType    int8
	payloadTypeRTX int8
	csrcs          []uint32

	mediaHasBeenSent    bool
	lastPacketMarkerBit bool
	sendingMedia        bool
	ssrcForced          bool
	seqForced           bool
	startTSForced       bool

	rtxMode          RTXMode
	targetBitrateBps int

	frameCounts FrameCounts
}

// NewSender constructs a Sender from cfg, allocating SSRCs and a
// random initial sequence number unless cfg forces them.
func NewSender(cfg Config, clock Clock, pacer Pacer, transport Transport, observers Observers, channelID int) (*Sender, error) {
	s := &Sender{
		cfg:            cfg,
		clock:          clock,
		pacer:          pacer,
		transport:      transport,
		observers:      observers,
		channelID:      channelID,
		log:            cfg.LoggerFactory.NewLogger("rtpsend"),
		history:        history.NewHistory(cfg.StorePackets, cfg.HistoryCapacity),
		nackLimiter:    &nack.Limiter{},
		delays:         newDelayWindow(),
		stats:          newStatsTracker(cfg.Kind == MediaVideo, cfg.RedPayloadType, cfg.FecPayloadType),
		payloadType:    -1,
		payloadTypeRTX: cfg.PayloadTypeRTX,
		csrcs:          cfg.CSRCs,
		rtxMode:        cfg.RTXMode,
		targetBitrateBps: cfg.TargetBitrateBps,
	}

	if cfg.ForcedSSRC != nil {
		globalSSRCRegistry.RegisterSSRC(*cfg.ForcedSSRC)
		s.ssrc = *cfg.ForcedSSRC
		s.ssrcForced = true
	} else {
		s.ssrc = globalSSRCRegistry.CreateSSRC()
	}
	if cfg.ForcedSSRCRTX != nil {
		globalSSRCRegistry.RegisterSSRC(*cfg.ForcedSSRCRTX)
		s.ssrcRTX = *cfg.ForcedSSRCRTX
	} else if cfg.RTXMode != RTXOff {
		s.ssrcRTX = globalSSRCRegistry.CreateSSRC()
	}

	if cfg.ForcedSeq != nil {
		s.seq = *cfg.ForcedSeq
		s.seqForced = true
	} else {
		s.seq = randomNonZeroSeq()
	}
	s.seqRTX = randomNonZeroSeq()

	if cfg.ForcedStartTS != nil {
		s.startTimestamp = *cfg.ForcedStartTS
		s.startTSForced = true
	}

	return s, nil
}

func randomNonZeroSeq() uint16 {
	n := uint16(randutil.NewMathRandomGenerator().Uint32() % 0xFFFF)
	if n == 0 {
		n = 1
	}
	return n
}

// SSRC returns the sender's current media SSRC.
func (s *Sender) SSRC() uint32 {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.ssrc
}

// Stats returns the current primary and RTX stream counters.
func (s *Sender) Stats() (media, rtx StreamDataCounters) {
	return s.stats.snapshot()
}

// SetTargetBitrate updates the bitrate used for NACK throttling.
func (s *Sender) SetTargetBitrate(bps int) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.targetBitrateBps = bps
}

// SendOutgoingData implements the spec's top-level send entry point:
// validate the sender is active, switch payload type if needed,
// reject frame types the media kind doesn't allow, packetize through
// cfg.Payloader, and push every resulting packet through SendToNetwork.
func (s *Sender) SendOutgoingData(frameType FrameType, pt int8, captureTimeMs int64, payload []byte, storage StorageKind, priority PacerPriority, audioLevel *AudioLevelInfo) (int, error) {
	s.sendMu.Lock()

	if !s.sendingMedia {
		s.sendMu.Unlock()
		return 0, &NotSendingError{Err: ErrNotSendingMedia}
	}

	if _, switched, err := CheckPayloadType(s.cfg.PayloadTypes, pt, s.payloadType, s.cfg.RedPayloadType, s.cfg.Kind == MediaAudio); err != nil {
		s.sendMu.Unlock()
		return 0, err
	} else if switched {
		s.payloadType = pt
	} else if s.payloadType < 0 {
		s.payloadType = pt
	}

	if s.cfg.Kind == MediaAudio {
		if frameType != FrameAudioSpeech && frameType != FrameAudioCN && frameType != FrameEmpty {
			s.sendMu.Unlock()
			return 0, &InvalidArgumentError{Err: ErrInvalidFrameType}
		}
	} else if frameType == FrameEmpty {
		s.sendMu.Unlock()
		return 0, nil
	}

	headerBudget := rtp.FixedHeaderLength + len(s.csrcs)*4 + s.cfg.Extensions.MaxBlockLength()
	mtu := s.cfg.MaxPayloadLength - headerBudget
	s.sendMu.Unlock()

	if mtu <= 0 {
		return 0, &InvalidArgumentError{Err: ErrMaxPayloadLength}
	}

	fragments := s.cfg.Payloader.Payload(mtu, payload)

	sent := 0
	for i, frag := range fragments {
		marker := i == len(fragments)-1
		n, err := s.buildAndSendFragment(uint8(pt), frag, marker, captureTimeMs, storage, priority, audioLevel)
		if err != nil {
			return sent, err
		}
		sent += n
	}

	s.sendMu.Lock()
	switch frameType {
	case FrameVideoKey:
		s.frameCounts.KeyFrames++
		s.frameCounts.VideoFrames++
	case FrameVideoDelta:
		s.frameCounts.DeltaFrames++
		s.frameCounts.VideoFrames++
	case FrameAudioSpeech, FrameAudioCN:
		s.frameCounts.AudioFrames++
	}
	counts := s.frameCounts
	ssrc := s.ssrc
	s.sendMu.Unlock()

	s.observers.notifyFrameCount(counts, ssrc)
	return sent, nil
}

// buildAndSendFragment assigns the next sequence number and RTP
// timestamp, builds one packet with placeholder extension values, and
// hands it to SendToNetwork.
func (s *Sender) buildAndSendFragment(pt uint8, payload []byte, marker bool, captureTimeMs int64, storage StorageKind, priority PacerPriority, audioLevel *AudioLevelInfo) (int, error) {
	s.sendMu.Lock()
	seq := s.seq
	s.seq++
	ts := s.startTimestamp + uint32(captureTimeMs)
	s.timestamp = ts
	s.lastTimestampTimeMs = s.clock.TimeInMilliseconds()
	s.captureTimeMs = captureTimeMs
	s.lastPacketMarkerBit = marker
	ssrc := s.ssrc
	csrcs := s.csrcs
	extMap := s.cfg.Extensions
	s.sendMu.Unlock()

	buf := make([]byte, rtp.FixedHeaderLength+len(csrcs)*4+extMap.MaxBlockLength()+len(payload))
	headerLen, err := rtp.BuildRtpHeader(buf, pt, ssrc, marker, ts, seq, csrcs, func(dst []byte) int {
		return extMap.BuildExtensionBlock(dst, func(kind rtp.ExtensionKind) []byte {
			switch kind {
			case rtp.ExtensionTransmissionTimeOffset:
				return rtp.EncodeTransmissionTimeOffset(0)
			case rtp.ExtensionAbsoluteSendTime:
				return rtp.EncodeAbsoluteSendTime(0)
			case rtp.ExtensionAudioLevel:
				if audioLevel != nil {
					return rtp.EncodeAudioLevel(audioLevel.VoiceActivity, audioLevel.DBov)
				}
				return rtp.EncodeAudioLevel(false, 0)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	copy(buf[headerLen:], payload)
	packet := buf[:headerLen+len(payload)]

	return s.sendToNetwork(packet, len(payload), headerLen, seq, captureTimeMs, storage, priority)
}

// sendToNetwork implements Packetizer -> SendToNetwork: restamp the
// time-sensitive extensions, register the packet in history, then
// either enqueue with the pacer or send directly.
func (s *Sender) sendToNetwork(packet []byte, payloadLen, headerLen int, seq uint16, captureTimeMs int64, storage StorageKind, priority PacerPriority) (int, error) {
	nowMs := s.clock.TimeInMilliseconds()

	if captureTimeMs > 0 {
		s.cfg.Extensions.UpdateExtension(packet, len(packet), headerLen, rtp.ExtensionTransmissionTimeOffset, rtp.EncodeTransmissionTimeOffset(nowMs-captureTimeMs))
	}
	s.cfg.Extensions.UpdateExtension(packet, len(packet), headerLen, rtp.ExtensionAbsoluteSendTime, rtp.EncodeAbsoluteSendTime(nowMs))

	s.history.Put(packet, seq, captureTimeMs, history.StorageKind(storage))

	s.sendMu.Lock()
	ssrc := s.ssrc
	s.sendMu.Unlock()

	if s.pacer != nil && storage != DontStore {
		if !s.pacer.Enqueue(priority, ssrc, seq, captureTimeMs, payloadLen, false) {
			return 0, nil
		}
	}

	isFEC := s.stats.isForwardErrorCorrection(rtp.PayloadType(packet), packet[headerLen:])
	return s.transmit(packet, payloadLen, 0, headerLen, false, false, isFEC, nowMs, captureTimeMs)
}

// transmit sends an already-built packet to the transport and updates
// delay samples, media_has_been_sent, and stats. It never holds sendMu
// while calling out to transport or observers.
func (s *Sender) transmit(packet []byte, payloadLen, paddingLen, headerLen int, isRTX, isRetransmission, isFEC bool, nowMs, captureTimeMs int64) (int, error) {
	if !isRetransmission {
		s.delays.AddSample(nowMs, captureTimeMs)
	}

	n := s.transport.SendPacket(s.channelID, packet)
	if n <= 0 {
		return 0, &TransportError{Err: ErrTransportSendFailed}
	}

	s.sendMu.Lock()
	s.mediaHasBeenSent = true
	ssrc := s.ssrc
	ssrcRTX := s.ssrcRTX
	s.sendMu.Unlock()

	s.stats.recordSent(isRTX, isRetransmission, isFEC, headerLen, payloadLen, paddingLen)

	reportSSRC := ssrc
	if isRTX {
		reportSSRC = ssrcRTX
	}
	media, rtx := s.stats.snapshot()
	counters := media
	if isRTX {
		counters = rtx
	}
	s.observers.notifyDataCounters(counters, reportSSRC)

	return n, nil
}

// ProcessSendDelay reports the current send-side delay window's
// avg/max to the configured observer, following the teacher's
// periodic-stats-push pattern (GetStats polled by an outer loop)
// generalized to a push callback. No-op if the window has no samples.
func (s *Sender) ProcessSendDelay() {
	nowMs := s.clock.TimeInMilliseconds()
	stats, ok := s.delays.Report(nowMs)
	if !ok {
		return
	}

	s.sendMu.Lock()
	ssrc := s.ssrc
	s.sendMu.Unlock()

	s.observers.notifySendSideDelay(stats.AvgDelayMs, stats.MaxDelayMs, ssrc)
}

// ProcessBitrate reports the media stream's cumulative on-wire byte
// total to the configured observer. Bitrate derivation (bytes over a
// sliding window) is an outer-loop concern; this call reports the
// accumulator the loop differentiates.
func (s *Sender) ProcessBitrate() {
	media, _ := s.stats.snapshot()

	s.sendMu.Lock()
	ssrc := s.ssrc
	s.sendMu.Unlock()

	s.observers.notifyBitrate(BitrateStats{BitrateBps: uint32(media.BytesSent)}, ssrc)
}

// TimeToSendPacket is the pacer's callback: retrieve the packet from
// history, optionally wrap it as RTX, restamp its time-sensitive
// extensions, and send.
func (s *Sender) TimeToSendPacket(seq uint16, captureTimeMs int64, isRetransmission bool) bool {
	nowMs := s.clock.TimeInMilliseconds()
	entry, ok := s.history.GetAndMarkSent(seq, nowMs, 0, false)
	if !ok {
		return true
	}

	packet := entry.Buffer
	headerLen := rtp.FixedHeaderLength + rtp.HeaderCC(packet)*4
	isRTX := false

	s.sendMu.Lock()
	rtxBit := s.rtxMode.has(RTXRetransmit)
	ssrcRTX := s.ssrcRTX
	s.sendMu.Unlock()

	if isRetransmission && rtxBit {
		wrapped, err := s.buildRtxFromEntry(packet, headerLen, ssrcRTX)
		if err != nil {
			return true
		}
		packet = wrapped
		isRTX = true
	}

	nowMs = s.clock.TimeInMilliseconds()
	s.restampExtensions(packet, headerLen, captureTimeMs, nowMs)

	payloadLen := len(packet) - headerLen
	if isRTX {
		payloadLen -= 2
	}
	isFEC := s.stats.isForwardErrorCorrection(rtp.PayloadType(entry.Buffer), entry.Buffer[headerLen:])
	if _, err := s.transmit(packet, payloadLen, 0, headerLen, isRTX, isRetransmission, isFEC, nowMs, captureTimeMs); err != nil {
		return true
	}

	return true
}

func (s *Sender) restampExtensions(packet []byte, headerLen int, captureTimeMs, nowMs int64) {
	if captureTimeMs > 0 {
		s.cfg.Extensions.UpdateExtension(packet, len(packet), headerLen, rtp.ExtensionTransmissionTimeOffset, rtp.EncodeTransmissionTimeOffset(nowMs-captureTimeMs))
	}
	s.cfg.Extensions.UpdateExtension(packet, len(packet), headerLen, rtp.ExtensionAbsoluteSendTime, rtp.EncodeAbsoluteSendTime(nowMs))
}

func (s *Sender) buildRtxFromEntry(original []byte, headerLen int, ssrcRTX uint32) ([]byte, error) {
	s.sendMu.Lock()
	seqRTX := s.seqRTX
	s.seqRTX++
	ptRTX := s.payloadTypeRTX
	s.sendMu.Unlock()

	originalSeq := rtp.SequenceNumber(original)
	dst := make([]byte, headerLen+2+(len(original)-headerLen))
	n, err := BuildRtxPacket(dst, original, headerLen, ssrcRTX, seqRTX, ptRTX, originalSeq)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// OnReceivedRTCPNack expands a received *rtcp.TransportLayerNack into
// its flat sequence-number list and feeds it to OnReceivedNACK. This
// is the entry point an RTCP reader calls; OnReceivedNACK itself stays
// transport-agnostic so tests can drive it with a literal []uint16.
func (s *Sender) OnReceivedRTCPNack(n *rtcp.TransportLayerNack, avgRTTMs int64) {
	s.OnReceivedNACK(nack.SequenceNumbersFromNack(n), avgRTTMs)
}

// OnReceivedNACK implements the NACK-response path: rate-limit, then
// resend each requested sequence number in order, stopping early on a
// hard error or once the RTT*bandwidth delay-product cap is hit.
func (s *Sender) OnReceivedNACK(seqs []uint16, avgRTTMs int64) {
	nowMs := s.clock.TimeInMilliseconds()

	s.sendMu.Lock()
	targetBitrateBps := s.targetBitrateBps
	s.sendMu.Unlock()

	if !s.nackLimiter.ShouldSend(nowMs, targetBitrateBps) {
		return
	}

	var bytesResent int64
	capBytes := int64(-1)
	if targetBitrateBps > 0 {
		capBytes = int64(targetBitrateBps/1000) * avgRTTMs / 8
	}

	for _, seq := range seqs {
		n := s.ReSendPacket(seq, 5+avgRTTMs)
		if n == 0 {
			continue
		}
		if n < 0 {
			s.log.Warnf("rtpsend: abandoning NACK response after resend error for seq %d", seq)
			break
		}
		bytesResent += int64(n)
		if capBytes >= 0 && bytesResent > capBytes {
			break
		}
	}

	if bytesResent > 0 {
		s.nackLimiter.Record(int(bytesResent), nowMs)
	}
}

// ReSendPacket resends seq if it's old enough to retransmit, returning
// the number of bytes sent (0 = skipped, already resent too recently;
// negative = hard error).
func (s *Sender) ReSendPacket(seq uint16, minResendAgeMs int64) int {
	nowMs := s.clock.TimeInMilliseconds()
	entry, ok := s.history.GetAndMarkSent(seq, nowMs, minResendAgeMs, false)
	if !ok {
		return 0
	}

	s.sendMu.Lock()
	ssrc := s.ssrc
	s.sendMu.Unlock()

	if s.pacer != nil && !s.pacer.Enqueue(PacerPriorityHigh, ssrc, seq, entry.CaptureTimeMs, entry.Length, true) {
		return entry.Length
	}

	headerLen := rtp.FixedHeaderLength + rtp.HeaderCC(entry.Buffer)*4
	packet := entry.Buffer
	isRTX := false

	s.sendMu.Lock()
	rtxBit := s.rtxMode.has(RTXRetransmit)
	ssrcRTX := s.ssrcRTX
	s.sendMu.Unlock()

	if rtxBit {
		wrapped, err := s.buildRtxFromEntry(entry.Buffer, headerLen, ssrcRTX)
		if err != nil {
			return -1
		}
		packet = wrapped
		isRTX = true
	}

	s.restampExtensions(packet, headerLen, entry.CaptureTimeMs, nowMs)

	isFEC := s.stats.isForwardErrorCorrection(rtp.PayloadType(entry.Buffer), entry.Buffer[headerLen:])
	n, err := s.transmit(packet, len(packet)-headerLen-boolToInt(isRTX)*2, 0, headerLen, isRTX, true, isFEC, nowMs, entry.CaptureTimeMs)
	if err != nil {
		return -1
	}
	return n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// TimeToSendPadding satisfies the pacer's bandwidth floor with
// `bytes` of filler: repaying older real payloads when redundant
// payloads are enabled, then synthesizing padding-only packets for
// whatever budget remains.
func (s *Sender) TimeToSendPadding(bytes int) int {
	s.sendMu.Lock()
	rtxMode := s.rtxMode
	lastMarker := s.lastPacketMarkerBit
	mediaHasBeenSent := s.mediaHasBeenSent
	s.sendMu.Unlock()

	if rtxMode == RTXOff && !lastMarker {
		return 0
	}
	if rtxMode != RTXOff && !mediaHasBeenSent && !s.cfg.Extensions.IsRegistered(rtp.ExtensionAbsoluteSendTime) {
		return 0
	}

	sent := 0
	bytesLeft := bytes

	if rtxMode.has(RTXRedundantPayloads) {
		for bytesLeft > 0 {
			entry, ok := s.history.GetBestFitting(bytesLeft)
			if !ok {
				break
			}
			headerLen := rtp.FixedHeaderLength + rtp.HeaderCC(entry.Buffer)*4

			s.sendMu.Lock()
			ssrcRTX := s.ssrcRTX
			s.sendMu.Unlock()

			wrapped, err := s.buildRtxFromEntry(entry.Buffer, headerLen, ssrcRTX)
			if err != nil {
				break
			}
			nowMs := s.clock.TimeInMilliseconds()
			s.restampExtensions(wrapped, headerLen, entry.CaptureTimeMs, nowMs)

			isFEC := s.stats.isForwardErrorCorrection(rtp.PayloadType(entry.Buffer), entry.Buffer[headerLen:])
			n, err := s.transmit(wrapped, len(wrapped)-headerLen-2, 0, headerLen, true, false, isFEC, nowMs, entry.CaptureTimeMs)
			if err != nil || n <= 0 {
				break
			}
			sent += n
			bytesLeft -= n
		}
	}

	for bytesLeft > 0 {
		n := s.sendOnePaddingPacket()
		if n <= 0 {
			break
		}
		sent += n
		bytesLeft -= kMaxPaddingLength
	}

	return sent
}

// sendOnePaddingPacket synthesizes one kMaxPaddingLength padding-only
// packet: padding bit set, last byte carries the padding length,
// interior bytes are pseudo-random.
func (s *Sender) sendOnePaddingPacket() int {
	s.sendMu.Lock()
	pt := s.payloadType
	rtxMode := s.rtxMode
	var seq uint16
	var ssrc uint32
	if rtxMode != RTXOff {
		seq = s.seqRTX
		s.seqRTX++
		ssrc = s.ssrcRTX
	} else {
		seq = s.seq
		s.seq++
		ssrc = s.ssrc
	}
	csrcs := s.csrcs
	s.sendMu.Unlock()

	if pt < 0 {
		return 0
	}

	buf := make([]byte, rtp.FixedHeaderLength+len(csrcs)*4+kMaxPaddingLength)
	headerLen, err := rtp.BuildRtpHeader(buf, uint8(pt), ssrc, false, 0, seq, csrcs, nil)
	if err != nil {
		return 0
	}
	buf[0] |= 1 << 5 // padding bit

	padding := buf[headerLen : headerLen+kMaxPaddingLength]
	fillPseudoRandom(padding[:len(padding)-1])
	padding[len(padding)-1] = kMaxPaddingLength

	nowMs := s.clock.TimeInMilliseconds()
	n, err := s.transmit(buf, 0, kMaxPaddingLength, headerLen, rtxMode != RTXOff, false, false, nowMs, 0)
	if err != nil {
		return 0
	}
	return n
}

func fillPseudoRandom(b []byte) {
	gen := randutil.NewMathRandomGenerator()
	for i := range b {
		b[i] = byte(gen.Uint32())
	}
}

// Close tears the sender down: both the media SSRC and, if RTX was
// ever enabled for this sender, the RTX SSRC are returned to
// globalSSRCRegistry so a later sender can claim them. Close is
// idempotent-unsafe like the teacher's Close methods — callers must
// not use the Sender afterward.
func (s *Sender) Close() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	globalSSRCRegistry.ReturnSSRC(s.ssrc)
	if s.cfg.RTXMode != RTXOff || s.cfg.ForcedSSRCRTX != nil {
		globalSSRCRegistry.ReturnSSRC(s.ssrcRTX)
	}
	return nil
}

// SetSendingStatus enables or disables the sender per spec.md §4.10.
// Enabling sets start_timestamp from the current wall clock unless
// forced. Disabling returns the current SSRC to the registry and
// allocates a fresh one (unless forced), and regenerates the sequence
// number (unless forced).
func (s *Sender) SetSendingStatus(enabled bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if enabled {
		s.sendingMedia = true
		if !s.startTSForced {
			s.startTimestamp = uint32(randutil.NewMathRandomGenerator().Uint32())
		}
		return
	}

	s.sendingMedia = false
	if !s.ssrcForced {
		globalSSRCRegistry.ReturnSSRC(s.ssrc)
		s.ssrc = globalSSRCRegistry.CreateSSRC()
	}
	if !s.seqForced {
		s.seq = randomNonZeroSeq()
	}
}

// SetSSRC forces the sender's media SSRC. If ssrc differs from the
// current one, the old SSRC is returned to the registry and the new
// one is claimed; the sequence number is regenerated unless it is
// itself forced. Calling with the already-forced value is a no-op.
func (s *Sender) SetSSRC(ssrc uint32) error {
	if ssrc == 0 {
		return &InvalidArgumentError{Err: ErrZeroSSRC}
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.ssrcForced && s.ssrc == ssrc {
		return nil
	}

	globalSSRCRegistry.ReturnSSRC(s.ssrc)
	globalSSRCRegistry.RegisterSSRC(ssrc)
	s.ssrc = ssrc
	s.ssrcForced = true

	if !s.seqForced {
		s.seq = randomNonZeroSeq()
	}
	return nil
}

// GetRtpState snapshots the checkpointable counters.
func (s *Sender) GetRtpState() RtpState {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return RtpState{
		SequenceNumber:      s.seq,
		StartTimestamp:      s.startTimestamp,
		Timestamp:           s.timestamp,
		CaptureTimeMs:       s.captureTimeMs,
		LastTimestampTimeMs: s.lastTimestampTimeMs,
		MediaHasBeenSent:    s.mediaHasBeenSent,
	}
}

// SetRtpState restores a previously checkpointed RtpState.
func (s *Sender) SetRtpState(state RtpState) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.seq = state.SequenceNumber
	s.startTimestamp = state.StartTimestamp
	s.timestamp = state.Timestamp
	s.captureTimeMs = state.CaptureTimeMs
	s.lastTimestampTimeMs = state.LastTimestampTimeMs
	s.mediaHasBeenSent = state.MediaHasBeenSent
	s.seqForced = true
}

// GetRtxRtpState snapshots the RTX stream's sequence number.
func (s *Sender) GetRtxRtpState() RtxRtpState {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return RtxRtpState{SequenceNumber: s.seqRTX}
}

// SetRtxRtpState restores a previously checkpointed RtxRtpState,
// independent of the primary stream's SetRtpState.
func (s *Sender) SetRtxRtpState(state RtxRtpState) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.seqRTX = state.SequenceNumber
}

// SendTelephoneEvent sends an RFC 4733 DTMF event as a raw payload
// through the ordinary send path: audio-only, mirroring
// rtp_sender.cc's SendTelephoneEvent/SendTelephoneEventActive, which
// hands the encoded event to the same SendOutgoingData path the audio
// frame path uses rather than a separate wire format. key is the
// DTMF event code (0-15 digits/letters, 16 flash per RFC 4733 table 7),
// durationMs the event duration, and level the volume in dBm0
// (0-63, attenuation).
func (s *Sender) SendTelephoneEvent(key uint8, durationMs int64, level uint8) error {
	if s.cfg.Kind != MediaAudio {
		return &InvalidArgumentError{Err: ErrTelephoneEventRequiresAudio}
	}
	if level > 63 {
		return &InvalidArgumentError{Err: ErrTelephoneEventLevel}
	}
	if s.cfg.PayloadTypeTelephoneEvent < 0 {
		return &InvalidArgumentError{Err: ErrTelephoneEventNotConfigured}
	}

	payload := rtp.EncodeTelephoneEvent(key, durationMs, level)
	_, err := s.SendOutgoingData(FrameAudioSpeech, s.cfg.PayloadTypeTelephoneEvent, s.clock.TimeInMilliseconds(), payload, DontStore, PacerPriorityNormal, nil)
	return err
}
