package rtpsend

import (
	"errors"
	"sync"
	"testing"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"

	"rtpsend/pkg/rtp"
	"rtpsend/pkg/rtp/codecs"
)

// fakeClock is a settable Clock for deterministic time-dependent tests
// (NACK rate limiting, delay windows, padding gating).
type fakeClock struct {
	mu sync.Mutex
	ms int64
}

func (c *fakeClock) TimeInMilliseconds() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *fakeClock) set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ms = ms
}

// fakeTransport records every packet handed to SendPacket.
type fakeTransport struct {
	mu      sync.Mutex
	packets [][]byte
	fail    bool
}

func (t *fakeTransport) SendPacket(channelID int, buf []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return 0
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	t.packets = append(t.packets, cp)
	return len(buf)
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.packets)
}

func (t *fakeTransport) last() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.packets[len(t.packets)-1]
}

// fakePacer either takes ownership of a packet (acceptOwnership=true,
// Enqueue reports false per the Pacer contract) or hands it straight
// back to the caller for an immediate send (Enqueue reports true).
type fakePacer struct {
	mu              sync.Mutex
	acceptOwnership bool
	enqueued        []uint16
}

func (p *fakePacer) Enqueue(priority PacerPriority, ssrc uint32, seq uint16, captureTimeMs int64, payloadLen int, isRetransmission bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enqueued = append(p.enqueued, seq)
	return !p.acceptOwnership
}

func testPayloadTypes() PayloadTypeTable {
	return PayloadTypeTable{
		96: {Name: "VP8", Kind: MediaVideo},
	}
}

func newTestSender(t *testing.T, clock Clock, pacer Pacer, transport Transport) *Sender {
	cfg, err := NewConfigBuilder(MediaVideo).
		WithPayloadTypes(testPayloadTypes()).
		WithPayloader(&codecs.OpusPayloader{}).
		WithForcedSequenceNumber(10).
		WithStorePackets(true, 16).
		Build()
	assert.NoError(t, err)

	s, err := NewSender(cfg, clock, pacer, transport, Observers{}, 0)
	assert.NoError(t, err)
	return s
}

func TestSendOutgoingDataRejectsWhenNotSending(t *testing.T) {
	s := newTestSender(t, &fakeClock{}, &fakePacer{}, &fakeTransport{})

	_, err := s.SendOutgoingData(FrameVideoKey, 96, 100, []byte{1, 2, 3}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.Error(t, err)
	var notSending *NotSendingError
	assert.True(t, errors.As(err, &notSending))
}

func TestSendOutgoingDataRejectsEmptyFrameForVideo(t *testing.T) {
	s := newTestSender(t, &fakeClock{}, &fakePacer{}, &fakeTransport{})
	s.SetSendingStatus(true)

	n, err := s.SendOutgoingData(FrameEmpty, 96, 100, []byte{1, 2, 3}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSendOutgoingDataUnknownPayloadTypeErrors(t *testing.T) {
	s := newTestSender(t, &fakeClock{}, &fakePacer{}, &fakeTransport{})
	s.SetSendingStatus(true)

	_, err := s.SendOutgoingData(FrameVideoKey, 111, 100, []byte{1, 2, 3}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.Error(t, err)
	var invalid *InvalidArgumentError
	assert.True(t, errors.As(err, &invalid))
}

func TestSendOutgoingDataWhenPacerAcceptsOwnershipDoesNotTransmitYet(t *testing.T) {
	transport := &fakeTransport{}
	pacer := &fakePacer{acceptOwnership: true}
	s := newTestSender(t, &fakeClock{}, pacer, transport)
	s.SetSendingStatus(true)

	n, err := s.SendOutgoingData(FrameVideoKey, 96, 100, []byte{1, 2, 3}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, transport.count())
	assert.Equal(t, []uint16{10}, pacer.enqueued)
}

func TestSendOutgoingDataWithoutPacerOwnershipTransmitsImmediately(t *testing.T) {
	transport := &fakeTransport{}
	pacer := &fakePacer{acceptOwnership: false}
	clock := &fakeClock{ms: 500}
	s := newTestSender(t, clock, pacer, transport)
	s.SetSendingStatus(true)

	n, err := s.SendOutgoingData(FrameVideoKey, 96, 100, []byte{1, 2, 3}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.NoError(t, err)
	assert.Equal(t, 12+3, n, "returned count is the full wire size, header plus payload")
	assert.Equal(t, 1, transport.count())

	media, _ := s.Stats()
	assert.Equal(t, uint32(1), media.PacketsSent)
	assert.Equal(t, uint64(3), media.BytesSent)
}

func TestTimeToSendPacketSendsStoredEntryLater(t *testing.T) {
	transport := &fakeTransport{}
	pacer := &fakePacer{acceptOwnership: true}
	clock := &fakeClock{ms: 500}
	s := newTestSender(t, clock, pacer, transport)
	s.SetSendingStatus(true)

	_, err := s.SendOutgoingData(FrameVideoKey, 96, 100, []byte{1, 2, 3}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, transport.count())

	ok := s.TimeToSendPacket(10, 100, false)
	assert.True(t, ok)
	assert.Equal(t, 1, transport.count())

	media, _ := s.Stats()
	assert.Equal(t, uint32(1), media.PacketsSent)
	assert.Equal(t, uint32(0), media.RetransmittedPacketsSent)
}

func TestTimeToSendPacketMissingEntryIsHarmless(t *testing.T) {
	s := newTestSender(t, &fakeClock{}, &fakePacer{}, &fakeTransport{})
	s.SetSendingStatus(true)

	ok := s.TimeToSendPacket(999, 0, false)
	assert.True(t, ok)
}

// Store packet seq=10, let OnReceivedNACK resend it through a pacer
// that takes ownership, then have the pacer's later callback actually
// deliver it: exactly one transport send, retransmit counters bumped.
func TestOnReceivedNACKThenPacerCallbackRetransmits(t *testing.T) {
	transport := &fakeTransport{}
	pacer := &fakePacer{acceptOwnership: true}
	clock := &fakeClock{ms: 1000}
	s := newTestSender(t, clock, pacer, transport)
	s.SetSendingStatus(true)

	_, err := s.SendOutgoingData(FrameVideoKey, 96, 0, []byte{9, 9, 9}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, transport.count())

	clock.set(1100)
	s.OnReceivedNACK([]uint16{10}, 20)
	assert.Equal(t, 0, transport.count(), "resend is handed to the pacer, not sent synchronously")

	ok := s.TimeToSendPacket(10, 0, true)
	assert.True(t, ok)
	assert.Equal(t, 1, transport.count())

	media, _ := s.Stats()
	assert.Equal(t, uint32(1), media.RetransmittedPacketsSent)
}

// OnReceivedRTCPNack must expand the wire NACK into the same sequence
// list a caller could pass straight to OnReceivedNACK, then drive the
// identical resend path.
func TestOnReceivedRTCPNackExpandsAndResends(t *testing.T) {
	transport := &fakeTransport{}
	pacer := &fakePacer{acceptOwnership: true}
	clock := &fakeClock{ms: 1000}
	s := newTestSender(t, clock, pacer, transport)
	s.SetSendingStatus(true)

	_, err := s.SendOutgoingData(FrameVideoKey, 96, 0, []byte{9, 9, 9}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.NoError(t, err)

	clock.set(1100)
	s.OnReceivedRTCPNack(&rtcp.TransportLayerNack{
		Nacks: []rtcp.NackPair{{PacketID: 10}},
	}, 20)

	ok := s.TimeToSendPacket(10, 0, true)
	assert.True(t, ok)
	assert.Equal(t, 1, transport.count())
}

// Scenario: RTX off, no marker bit yet -> padding call is a no-op; once
// a marker-bit packet has gone out, padding synthesizes exactly one
// kMaxPaddingLength packet with the padding bit set and the trailing
// length byte correct.
func TestTimeToSendPaddingGatedUntilMarkerBitSeen(t *testing.T) {
	transport := &fakeTransport{}
	pacer := &fakePacer{acceptOwnership: false}
	clock := &fakeClock{ms: 2000}
	s := newTestSender(t, clock, pacer, transport)
	s.SetSendingStatus(true)

	sent := s.TimeToSendPadding(100)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 0, transport.count())

	_, err := s.SendOutgoingData(FrameVideoKey, 96, 0, []byte{1, 2, 3}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, transport.count())

	sent = s.TimeToSendPadding(100)
	assert.Equal(t, 12+kMaxPaddingLength, sent, "one padding packet fully covers a sub-kMaxPaddingLength request")
	assert.Equal(t, 2, transport.count())

	padded := transport.last()
	assert.NotZero(t, padded[0]&(1<<5), "padding bit must be set")
	assert.Equal(t, uint8(kMaxPaddingLength), padded[len(padded)-1])
}

// With a target bitrate set, OnReceivedNACK's delay-bandwidth product
// caps how many of a multi-packet NACK list actually get resent: the
// second sequence number should never reach the pacer once the first
// resend's bytes already exceed the cap.
func TestOnReceivedNACKStopsAtDelayBandwidthCap(t *testing.T) {
	transport := &fakeTransport{}
	pacer := &fakePacer{acceptOwnership: true}
	clock := &fakeClock{ms: 1000}
	s := newTestSender(t, clock, pacer, transport)
	s.SetSendingStatus(true)

	_, err := s.SendOutgoingData(FrameVideoKey, 96, 0, []byte{1, 2, 3, 4, 5}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.NoError(t, err)
	_, err = s.SendOutgoingData(FrameVideoDelta, 96, 0, []byte{6, 7, 8, 9, 10}, AllowRetransmission, PacerPriorityNormal, nil)
	assert.NoError(t, err)

	s.SetTargetBitrate(8000) // 8000 bps * 1ms RTT / 8 = 1 byte cap, well under one packet

	clock.set(1100)
	s.OnReceivedNACK([]uint16{10, 11}, 1)

	assert.Equal(t, []uint16{10}, pacer.enqueued, "second seq is dropped once the first resend exceeds the delay-bandwidth cap")
}

func TestSetSendingStatusDisableReturnsSSRCAndRegeneratesSequence(t *testing.T) {
	s := newTestSender(t, &fakeClock{}, &fakePacer{}, &fakeTransport{})
	s.SetSendingStatus(true)
	originalSSRC := s.SSRC()

	s.SetSendingStatus(false)
	newSSRC := s.SSRC()
	assert.NotEqual(t, originalSSRC, newSSRC)
}

func TestSetSSRCForcesMediaSSRCAndRegeneratesSequence(t *testing.T) {
	s := newTestSender(t, &fakeClock{}, &fakePacer{}, &fakeTransport{})

	err := s.SetSSRC(0)
	assert.Error(t, err)

	err = s.SetSSRC(0xDEADBEEF)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), s.SSRC())

	err = s.SetSSRC(0xDEADBEEF)
	assert.NoError(t, err)
}

func TestCloseReturnsMediaAndRTXSSRCToRegistry(t *testing.T) {
	cfg, err := NewConfigBuilder(MediaVideo).
		WithPayloadTypes(testPayloadTypes()).
		WithPayloader(&codecs.OpusPayloader{}).
		WithRTXMode(RTXRetransmit).
		Build()
	assert.NoError(t, err)

	s, err := NewSender(cfg, &fakeClock{}, &fakePacer{}, &fakeTransport{}, Observers{}, 0)
	assert.NoError(t, err)

	ssrc, ssrcRTX := s.SSRC(), s.ssrcRTX
	assert.NoError(t, s.Close())

	globalSSRCRegistry.mu.Lock()
	_, ssrcStillHeld := globalSSRCRegistry.used[ssrc]
	_, rtxStillHeld := globalSSRCRegistry.used[ssrcRTX]
	globalSSRCRegistry.mu.Unlock()

	assert.False(t, ssrcStillHeld)
	assert.False(t, rtxStillHeld)
}

func TestGetAndSetRtpStateRoundTrips(t *testing.T) {
	s := newTestSender(t, &fakeClock{}, &fakePacer{}, &fakeTransport{})

	state := RtpState{
		SequenceNumber:      42,
		StartTimestamp:      1000,
		Timestamp:           2000,
		CaptureTimeMs:       5,
		LastTimestampTimeMs: 6,
		MediaHasBeenSent:    true,
	}
	s.SetRtpState(state)
	assert.Equal(t, state, s.GetRtpState())
}

func TestGetAndSetRtxRtpStateRoundTrips(t *testing.T) {
	s := newTestSender(t, &fakeClock{}, &fakePacer{}, &fakeTransport{})

	s.SetRtxRtpState(RtxRtpState{SequenceNumber: 777})
	assert.Equal(t, RtxRtpState{SequenceNumber: 777}, s.GetRtxRtpState())
}

func newTestAudioSender(t *testing.T, clock Clock, pacer Pacer, transport Transport) *Sender {
	cfg, err := NewConfigBuilder(MediaAudio).
		WithPayloadTypes(PayloadTypeTable{
			111: {Name: "opus", Kind: MediaAudio},
			101: {Name: "telephone-event", Kind: MediaAudio},
		}).
		WithPayloader(&codecs.OpusPayloader{}).
		WithForcedSequenceNumber(10).
		WithPayloadTypeTelephoneEvent(101).
		Build()
	assert.NoError(t, err)

	s, err := NewSender(cfg, clock, pacer, transport, Observers{}, 0)
	assert.NoError(t, err)
	return s
}

func TestSendTelephoneEventRejectsVideoSender(t *testing.T) {
	s := newTestSender(t, &fakeClock{}, &fakePacer{}, &fakeTransport{})
	s.SetSendingStatus(true)

	err := s.SendTelephoneEvent(1, 100, 10)
	assert.Error(t, err)
}

func TestSendTelephoneEventRejectsLevelOutOfRange(t *testing.T) {
	s := newTestAudioSender(t, &fakeClock{}, &fakePacer{}, &fakeTransport{})
	s.SetSendingStatus(true)

	err := s.SendTelephoneEvent(1, 100, 64)
	assert.Error(t, err)
}

func TestSendTelephoneEventSendsDTMFPayload(t *testing.T) {
	transport := &fakeTransport{}
	s := newTestAudioSender(t, &fakeClock{}, &fakePacer{}, transport)
	s.SetSendingStatus(true)

	err := s.SendTelephoneEvent(5, 160, 20)
	assert.NoError(t, err)
	assert.Equal(t, 1, transport.count())

	pkt := transport.last()
	payload := pkt[rtp.FixedHeaderLength:]
	assert.Equal(t, uint8(5), payload[0])
	assert.Equal(t, uint8(0x80|20), payload[1])
}
