package rtpsend

import (
	"sync"

	"github.com/pion/randutil"
)

// ssrcRegistry is the process-wide table of SSRCs currently claimed by
// some sender, so two senders constructed independently never collide.
// Grounded on track.go's single random, non-zero ssrc field, generalized
// into a shared registry per spec.md §9's concurrency model.
type ssrcRegistry struct {
	mu   sync.Mutex
	used map[uint32]struct{}
}

var globalSSRCRegistry = &ssrcRegistry{used: make(map[uint32]struct{})}

// CreateSSRC returns a freshly allocated, registered, non-zero SSRC.
func (r *ssrcRegistry) CreateSSRC() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		v := randutil.NewMathRandomGenerator().Uint32()
		if v == 0 {
			continue
		}
		if _, taken := r.used[v]; taken {
			continue
		}
		r.used[v] = struct{}{}
		return v
	}
}

// RegisterSSRC claims an externally supplied, non-zero SSRC.
func (r *ssrcRegistry) RegisterSSRC(ssrc uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used[ssrc] = struct{}{}
}

// ReturnSSRC releases an SSRC back to the pool.
func (r *ssrcRegistry) ReturnSSRC(ssrc uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.used, ssrc)
}
