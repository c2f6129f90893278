package zwave

import (
	"sync"
	"time"

	"github.com/joeycumines/go-utilpkg/catrate"
)

// Inter-message gap defaults (spec.md §4.5): a minimum gap between
// consecutive wire transmissions, replaced by a shorter gap before a retry
// after a Cancel and by an equal one before a retry after a NAK/timeout.
const (
	txGapDefault       = 150 * time.Millisecond
	txGapAfterCancel   = 100 * time.Millisecond
	txGapAfterNakOrTmo = 150 * time.Millisecond
)

// pingSuppressWindow is the frequent-listener re-ping suppression window
// (spec.md §4.5, confirmed at ~1.5s by original_source's m_enctLastPing
// tracking).
const pingSuppressWindow = 1500 * time.Millisecond

// txThrottle enforces the two sliding-window throttles C5 needs. The
// per-node ping suppression window is a textbook fit for catrate.Limiter
// (fixed window, keyed by category). The inter-message gap varies its
// width per outcome (cancel/NAK/timeout), which catrate's fixed-at-
// construction windows can't express, so it is tracked with a plain
// last-transmit timestamp instead.
type txThrottle struct {
	mu      sync.Mutex
	lastTx  time.Time
	nextGap time.Duration

	ping *catrate.Limiter
}

func newTxThrottle(defaultGap time.Duration) *txThrottle {
	return &txThrottle{
		nextGap: defaultGap,
		ping:    catrate.NewLimiter(map[time.Duration]int{pingSuppressWindow: 1}),
	}
}

// wait blocks until the inter-message gap since the last transmit has
// elapsed.
func (t *txThrottle) wait() {
	t.mu.Lock()
	last, gap := t.lastTx, t.nextGap
	t.mu.Unlock()

	if last.IsZero() {
		return
	}
	if d := gap - time.Since(last); d > 0 {
		time.Sleep(d)
	}
}

// recordTransmit stamps the last-transmit time and sets the gap to apply
// before the next one.
func (t *txThrottle) recordTransmit(gap time.Duration) {
	t.mu.Lock()
	t.lastTx = time.Now()
	t.nextGap = gap
	t.mu.Unlock()
}

// pingAllowed reports whether target may be pinged now, consuming the
// window's slot if so. A frequent-listener target pinged within the last
// pingSuppressWindow is not pinged again.
func (t *txThrottle) pingAllowed(target byte) bool {
	_, ok := t.ping.Allow(target)
	return ok
}
