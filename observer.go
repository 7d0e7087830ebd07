package rtpsend

// FrameCounts tallies per-frame-type counts observed by SendOutgoingData.
type FrameCounts struct {
	VideoFrames  uint32
	DeltaFrames  uint32
	KeyFrames    uint32
	AudioFrames  uint32
}

// BitrateStats is the current outgoing bitrate snapshot for a stream.
type BitrateStats struct {
	BitrateBps uint32
}

// FrameCountObserver is notified whenever SendOutgoingData successfully
// dispatches a frame.
type FrameCountObserver interface {
	FrameCountUpdated(counts FrameCounts, ssrc uint32)
}

// DataCountersObserver is notified whenever the stats aggregator's
// counters change for a stream.
type DataCountersObserver interface {
	DataCountersUpdated(counters StreamDataCounters, ssrc uint32)
}

// SendSideDelayObserver is notified by ProcessSendDelay with the
// current avg/max of the send-delay window.
type SendSideDelayObserver interface {
	SendSideDelayUpdated(avgMs, maxMs int64, ssrc uint32)
}

// BitrateObserver is notified by ProcessBitrate with the current
// per-stream bitrate.
type BitrateObserver interface {
	BitrateNotify(stats BitrateStats, ssrc uint32)
}

// Observers bundles the closed set of sender-side telemetry callbacks
// named in spec.md §6. Any field left nil is simply not invoked; there
// is no nil-check burden on the caller, mirroring pkg/logger/optional.go's
// nil-safe wrapper idiom but applied to a struct of independent traits
// rather than a single chained logger.
//
// Observers must never be invoked while send_lock or stats_lock is
// held (spec.md §5) — callers in this package always snapshot state
// under the relevant lock, release it, and only then call out.
type Observers struct {
	FrameCount    FrameCountObserver
	DataCounters  DataCountersObserver
	SendSideDelay SendSideDelayObserver
	Bitrate       BitrateObserver
}

func (o Observers) notifyFrameCount(counts FrameCounts, ssrc uint32) {
	if o.FrameCount != nil {
		o.FrameCount.FrameCountUpdated(counts, ssrc)
	}
}

func (o Observers) notifyDataCounters(counters StreamDataCounters, ssrc uint32) {
	if o.DataCounters != nil {
		o.DataCounters.DataCountersUpdated(counters, ssrc)
	}
}

func (o Observers) notifySendSideDelay(avgMs, maxMs int64, ssrc uint32) {
	if o.SendSideDelay != nil {
		o.SendSideDelay.SendSideDelayUpdated(avgMs, maxMs, ssrc)
	}
}

func (o Observers) notifyBitrate(stats BitrateStats, ssrc uint32) {
	if o.Bitrate != nil {
		o.Bitrate.BitrateNotify(stats, ssrc)
	}
}
