package admission

import (
	"io"
	"testing"
	"time"

	"carbid/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

func TestConnectionGate_CapsPerOrigin(t *testing.T) {
	gate := NewConnectionGate(3, testLogger())

	for i := 0; i < 3; i++ {
		if !gate.TryAcquire("10.0.0.1") {
			t.Fatalf("connection %d rejected below cap", i+1)
		}
	}
	if gate.TryAcquire("10.0.0.1") {
		t.Fatal("connection above cap was admitted")
	}

	// A different origin has its own counter.
	if !gate.TryAcquire("10.0.0.2") {
		t.Fatal("unrelated origin rejected")
	}
}

func TestConnectionGate_ReleaseFreesSlot(t *testing.T) {
	gate := NewConnectionGate(1, testLogger())

	if !gate.TryAcquire("a") {
		t.Fatal("first acquire rejected")
	}
	if gate.TryAcquire("a") {
		t.Fatal("second acquire admitted at cap 1")
	}

	gate.Release("a")

	if !gate.TryAcquire("a") {
		t.Fatal("acquire rejected after release")
	}
}

func TestConnectionGate_ReleaseFloorsAtZero(t *testing.T) {
	gate := NewConnectionGate(2, testLogger())

	gate.Release("ghost")
	gate.Release("ghost")

	if n := gate.Count("ghost"); n != 0 {
		t.Fatalf("Count = %d after releasing an origin with no connections", n)
	}
	if !gate.TryAcquire("ghost") || !gate.TryAcquire("ghost") {
		t.Fatal("spurious releases reduced the available slots")
	}
}

func TestMessageLimiter_RejectsAboveLimit(t *testing.T) {
	limiter := NewMessageLimiter(5, time.Minute, testLogger())
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		if !limiter.Allow("client") {
			t.Fatalf("message %d rejected below limit", i+1)
		}
	}
	if limiter.Allow("client") {
		t.Fatal("message above limit was admitted")
	}
	if !limiter.Allow("other") {
		t.Fatal("unrelated origin rejected")
	}
}

func TestMessageLimiter_WindowExpiryReadmits(t *testing.T) {
	limiter := NewMessageLimiter(2, 50*time.Millisecond, testLogger())
	defer limiter.Stop()

	limiter.Allow("client")
	limiter.Allow("client")
	if limiter.Allow("client") {
		t.Fatal("third message inside the window was admitted")
	}

	time.Sleep(60 * time.Millisecond)

	if !limiter.Allow("client") {
		t.Fatal("message rejected after the window expired")
	}
}

func TestMessageLimiter_EmptyOriginAlwaysAllowed(t *testing.T) {
	limiter := NewMessageLimiter(1, time.Minute, testLogger())
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		if !limiter.Allow("") {
			t.Fatal("empty origin was limited")
		}
	}
}
