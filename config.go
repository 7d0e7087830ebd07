package rtpsend

import (
	"github.com/pion/logging"

	"rtpsend/pkg/rtp"
)

// DefaultMaxPayloadLength is 1500 (typical Ethernet MTU) minus 28
// bytes of IPv4/UDP overhead.
const DefaultMaxPayloadLength = 1472

const maxPayloadLengthFloor = 100

// ipPacketSize is the conventional upper bound on an RTP packet's
// total size (1500-byte Ethernet MTU), used as max_payload_length's
// ceiling.
const ipPacketSize = 1500

// kMaxPaddingLength is RFC 3550's 255-byte padding ceiling, reduced to
// a multiple of 32 for SRTP block alignment.
const kMaxPaddingLength = 224

// Config is an immutable-once-built bundle of sender construction
// parameters, assembled through ConfigBuilder the way SettingEngine
// assembles a PeerConnection's non-API-surfaced behavior.
type Config struct {
	Kind                      MediaKind
	MaxPayloadLength          int
	Extensions                rtp.ExtensionMap
	CSRCs                     []uint32
	RTXMode                   RTXMode
	StorePackets              bool
	HistoryCapacity           uint16
	MinResendAgeMs            int64
	ForcedSSRC                *uint32
	ForcedSSRCRTX             *uint32
	ForcedSeq                 *uint16
	ForcedStartTS             *uint32
	TargetBitrateBps          int
	RedPayloadType            int8
	FecPayloadType            int8
	PayloadTypeRTX            int8
	PayloadTypeTelephoneEvent int8
	PayloadTypes              PayloadTypeTable
	Payloader                 rtp.Payloader
	LoggerFactory             logging.LoggerFactory
}

// ConfigBuilder accumulates Config fields through chained setters,
// following SettingEngine's shape: each With* method mutates the
// builder's embedded Config and returns the builder for chaining.
type ConfigBuilder struct {
	cfg Config
}

// NewConfigBuilder returns a builder with spec defaults: max payload
// length 1472, RTX off, history disabled, payload type RTX unset (-1).
func NewConfigBuilder(kind MediaKind) *ConfigBuilder {
	return &ConfigBuilder{cfg: Config{
		Kind:                      kind,
		MaxPayloadLength:          DefaultMaxPayloadLength,
		RTXMode:                   RTXOff,
		RedPayloadType:            -1,
		FecPayloadType:            -1,
		PayloadTypeRTX:            -1,
		PayloadTypeTelephoneEvent: -1,
		PayloadTypes:              PayloadTypeTable{},
		LoggerFactory:             logging.NewDefaultLoggerFactory(),
	}}
}

func (b *ConfigBuilder) WithMaxPayloadLength(n int) *ConfigBuilder {
	b.cfg.MaxPayloadLength = n
	return b
}

func (b *ConfigBuilder) WithExtension(kind rtp.ExtensionKind, id uint8) *ConfigBuilder {
	b.cfg.Extensions.Register(kind, id)
	return b
}

func (b *ConfigBuilder) WithCSRCs(csrcs []uint32) *ConfigBuilder {
	b.cfg.CSRCs = csrcs
	return b
}

func (b *ConfigBuilder) WithRTXMode(mode RTXMode) *ConfigBuilder {
	b.cfg.RTXMode = mode
	return b
}

func (b *ConfigBuilder) WithStorePackets(enabled bool, capacity uint16) *ConfigBuilder {
	b.cfg.StorePackets = enabled
	b.cfg.HistoryCapacity = capacity
	return b
}

func (b *ConfigBuilder) WithMinResendAgeMs(ms int64) *ConfigBuilder {
	b.cfg.MinResendAgeMs = ms
	return b
}

func (b *ConfigBuilder) WithForcedSSRC(ssrc uint32) *ConfigBuilder {
	b.cfg.ForcedSSRC = &ssrc
	return b
}

func (b *ConfigBuilder) WithForcedSSRCRTX(ssrc uint32) *ConfigBuilder {
	b.cfg.ForcedSSRCRTX = &ssrc
	return b
}

func (b *ConfigBuilder) WithForcedSequenceNumber(seq uint16) *ConfigBuilder {
	b.cfg.ForcedSeq = &seq
	return b
}

func (b *ConfigBuilder) WithForcedStartTimestamp(ts uint32) *ConfigBuilder {
	b.cfg.ForcedStartTS = &ts
	return b
}

func (b *ConfigBuilder) WithTargetBitrateBps(bps int) *ConfigBuilder {
	b.cfg.TargetBitrateBps = bps
	return b
}

func (b *ConfigBuilder) WithRED(redPT, fecPT int8) *ConfigBuilder {
	b.cfg.RedPayloadType = redPT
	b.cfg.FecPayloadType = fecPT
	return b
}

func (b *ConfigBuilder) WithPayloadTypeRTX(pt int8) *ConfigBuilder {
	b.cfg.PayloadTypeRTX = pt
	return b
}

// WithPayloadTypeTelephoneEvent sets the payload type SendTelephoneEvent
// stamps on outgoing RFC 4733 DTMF events.
func (b *ConfigBuilder) WithPayloadTypeTelephoneEvent(pt int8) *ConfigBuilder {
	b.cfg.PayloadTypeTelephoneEvent = pt
	return b
}

func (b *ConfigBuilder) WithPayloadTypes(t PayloadTypeTable) *ConfigBuilder {
	b.cfg.PayloadTypes = t
	return b
}

func (b *ConfigBuilder) WithPayloader(p rtp.Payloader) *ConfigBuilder {
	b.cfg.Payloader = p
	return b
}

func (b *ConfigBuilder) WithLoggerFactory(f logging.LoggerFactory) *ConfigBuilder {
	b.cfg.LoggerFactory = f
	return b
}

// Build validates and returns the assembled Config.
func (b *ConfigBuilder) Build() (Config, error) {
	if b.cfg.MaxPayloadLength < maxPayloadLengthFloor || b.cfg.MaxPayloadLength > ipPacketSize {
		return Config{}, &InvalidArgumentError{Err: ErrMaxPayloadLength}
	}
	if len(b.cfg.CSRCs) > rtp.MaxCSRCCount {
		return Config{}, &InvalidArgumentError{Err: ErrCSRCOverflow}
	}
	for _, id := range b.cfg.Extensions.RegisteredIDs() {
		if id < 1 || id > 14 {
			return Config{}, &InvalidArgumentError{Err: ErrInvalidExtensionID}
		}
	}
	return b.cfg, nil
}
