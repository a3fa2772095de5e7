package dispatch

import (
	"sync"
	"time"
)

type destination struct {
	guildID   string
	channelID string
}

// WindowLimiter enforces a per-destination cap on sends within a sliding
// time window. State is process-local and owned by the dispatcher instance;
// it resets on restart, which is tolerated because the window is short.
type WindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	sends  map[destination][]time.Time
	now    func() time.Time
}

func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		limit:  limit,
		window: window,
		sends:  make(map[destination][]time.Time),
		now:    time.Now,
	}
}

// Allow records a send for the destination if it is under the window cap and
// reports whether the caller may proceed. A false return means the job must
// be deferred, not failed.
func (l *WindowLimiter) Allow(guildID, channelID string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := destination{guildID: guildID, channelID: channelID}
	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.sends[key][:0]
	for _, ts := range l.sends[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.limit {
		l.sends[key] = recent
		return false
	}

	l.sends[key] = append(recent, now)
	return true
}
