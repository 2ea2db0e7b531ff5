package sync

import (
	"context"
	"log"
	"time"

	"github.com/quillforge/quill/internal/store"
)

// monitor classifies the remote store as reachable or unreachable before
// each cycle. It is only ever touched from inside a cycle, so it needs no
// locking of its own; the engine copies its counter into Status under the
// engine mutex.
//
// The failure ceiling never stops retrying: the user may reconnect at any
// time, so the engine probes on every tick forever. Past the ceiling the
// monitor only thins out its log output.
type monitor struct {
	timeout    time.Duration
	logCeiling int
	failures   int
}

// probe issues a cheap read with a short timeout and returns whether the
// remote store answered. Consecutive failures are counted; a success resets
// the counter.
func (m *monitor) probe(ctx context.Context, remote store.Remote, logger *log.Logger) bool {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := remote.Ping(pctx); err != nil {
		m.failures++
		// A ceiling of zero or less means no thinning at all.
		if m.logCeiling <= 0 || m.failures <= m.logCeiling || m.failures%m.logCeiling == 0 {
			logger.Printf("Remote unreachable (%d consecutive failures): %v", m.failures, err)
		}
		return false
	}

	if m.failures > 0 {
		logger.Printf("Remote reachable again after %d failed probes", m.failures)
	}
	m.failures = 0
	return true
}

// consecutiveFailures returns the current failure streak.
func (m *monitor) consecutiveFailures() int {
	return m.failures
}
