package ratelimit

import (
	"log/slog"
	"time"

	"github.com/go-chi/httprate"
)

type failOpenCounter struct {
	next httprate.LimitCounter
}

// FailOpen wraps a shared counter so a backend outage lets requests through
// instead of failing them. Errors are logged and reported as zero counts.
func FailOpen(c httprate.LimitCounter) httprate.LimitCounter {
	return &failOpenCounter{next: c}
}

func (f *failOpenCounter) Config(requestLimit int, windowLength time.Duration) {
	f.next.Config(requestLimit, windowLength)
}

func (f *failOpenCounter) Increment(key string, currentWindow time.Time) error {
	return f.IncrementBy(key, currentWindow, 1)
}

func (f *failOpenCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	if err := f.next.IncrementBy(key, currentWindow, amount); err != nil {
		slog.Warn("rate limit counter unavailable, allowing request", "op", "increment", "error", err)
	}
	return nil
}

func (f *failOpenCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	curr, prev, err := f.next.Get(key, currentWindow, previousWindow)
	if err != nil {
		slog.Warn("rate limit counter unavailable, allowing request", "op", "get", "error", err)
		return 0, 0, nil
	}
	return curr, prev, nil
}
