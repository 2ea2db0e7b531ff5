package sync

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"
)

func TestProbeCountsConsecutiveFailures(t *testing.T) {
	fake := newFakeRemote()
	fake.setPingErr(errors.New("no route to host"))

	m := &monitor{timeout: time.Second, logCeiling: 5}
	logger := log.New(&bytes.Buffer{}, "", 0)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if m.probe(ctx, fake, logger) {
			t.Fatal("probe should fail while the remote is down")
		}
		if m.consecutiveFailures() != i {
			t.Fatalf("expected %d failures, got %d", i, m.consecutiveFailures())
		}
	}

	fake.setPingErr(nil)
	if !m.probe(ctx, fake, logger) {
		t.Fatal("probe should succeed once the remote answers")
	}
	if m.consecutiveFailures() != 0 {
		t.Errorf("expected failure streak reset, got %d", m.consecutiveFailures())
	}
}

func TestProbeThinsLogsPastCeiling(t *testing.T) {
	fake := newFakeRemote()
	fake.setPingErr(errors.New("no route to host"))

	var buf bytes.Buffer
	m := &monitor{timeout: time.Second, logCeiling: 3}
	logger := log.New(&buf, "", 0)
	ctx := context.Background()

	// Failures 1-3 are each logged; past the ceiling only multiples of 3 are.
	for i := 0; i < 9; i++ {
		m.probe(ctx, fake, logger)
	}

	lines := strings.Count(buf.String(), "\n")
	if lines != 5 {
		t.Errorf("expected 5 logged failures (1, 2, 3, 6, 9), got %d:\n%s", lines, buf.String())
	}

	// Recovery is always logged and names the streak length.
	buf.Reset()
	fake.setPingErr(nil)
	m.probe(ctx, fake, logger)

	if !strings.Contains(buf.String(), "after 9 failed probes") {
		t.Errorf("expected recovery log naming the streak, got %q", buf.String())
	}
}

func TestProbeZeroCeilingLogsEveryFailure(t *testing.T) {
	fake := newFakeRemote()
	fake.setPingErr(errors.New("no route to host"))

	var buf bytes.Buffer
	m := &monitor{timeout: time.Second, logCeiling: 0}
	logger := log.New(&buf, "", 0)
	ctx := context.Background()

	// A zero ceiling disables thinning entirely; it must never divide by it.
	for i := 0; i < 4; i++ {
		if m.probe(ctx, fake, logger) {
			t.Fatal("probe should fail while the remote is down")
		}
	}

	if lines := strings.Count(buf.String(), "\n"); lines != 4 {
		t.Errorf("expected every failure logged with a zero ceiling, got %d:\n%s", lines, buf.String())
	}
	if m.consecutiveFailures() != 4 {
		t.Errorf("expected 4 consecutive failures, got %d", m.consecutiveFailures())
	}
}
