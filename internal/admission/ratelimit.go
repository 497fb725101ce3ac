package admission

import (
	"sync"
	"time"

	"carbid/pkg/logger"
)

// MessageLimiter bounds the inbound message rate per client origin with a
// sliding window of timestamps. It is evaluated before any auction logic
// runs; an over-limit message is rejected without being processed.
type MessageLimiter struct {
	mu       sync.RWMutex
	messages map[string][]time.Time
	limit    int
	window   time.Duration
	log      *logger.Logger
	stopCh   chan struct{}
}

func NewMessageLimiter(limit int, window time.Duration, log *logger.Logger) *MessageLimiter {
	limiter := &MessageLimiter{
		messages: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		log:      log,
		stopCh:   make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

// cleanup drops origins whose entire window has expired so the map does not
// grow with every client that ever connected.
func (rl *MessageLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for origin, timestamps := range rl.messages {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.messages, origin)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *MessageLimiter) Stop() {
	close(rl.stopCh)
}

// Allow discards timestamps older than the window, and admits the message iff
// the remaining count is below the limit, recording the new timestamp.
func (rl *MessageLimiter) Allow(origin string) bool {
	if origin == "" {
		return true
	}

	now := time.Now()

	rl.mu.RLock()
	timestamps := rl.messages[origin]
	rl.mu.RUnlock()

	validTimestamps := make([]time.Time, 0)
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= rl.limit {
		return false
	}

	validTimestamps = append(validTimestamps, now)

	rl.mu.Lock()
	rl.messages[origin] = validTimestamps
	rl.mu.Unlock()

	return true
}
