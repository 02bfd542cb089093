package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type streamerStub struct {
	errs []error
}

func (s *streamerStub) Stream(_ io.Writer) error {
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func TestStreamMicRetriesOnOverflow(t *testing.T) {
	streamer := &streamerStub{errs: []error{
		errors.New("Input overflowed"),
		errors.New("input OVERFLOW detected"),
	}}

	var waits int
	var logs []string
	streamMicWithRetry(context.Background(), streamer, io.Discard,
		func(time.Duration) { waits++ },
		func(format string, args ...any) { logs = append(logs, format) },
	)

	if waits != 2 {
		t.Fatalf("expected 2 retry waits, got %d", waits)
	}
	if len(streamer.errs) != 0 {
		t.Fatalf("expected all errors consumed, %d left", len(streamer.errs))
	}
}

func TestStreamMicStopsOnFatalError(t *testing.T) {
	streamer := &streamerStub{errs: []error{
		errors.New("device disappeared"),
		errors.New("should never be reached"),
	}}

	var logs []string
	streamMicWithRetry(context.Background(), streamer, io.Discard,
		func(time.Duration) {},
		func(format string, args ...any) { logs = append(logs, format) },
	)

	if len(streamer.errs) != 1 {
		t.Fatalf("expected one error left unconsumed, got %d", len(streamer.errs))
	}
	if len(logs) != 1 || !strings.Contains(logs[0], "mic stream error") {
		t.Fatalf("expected fatal error logged, got %v", logs)
	}
}

func TestStreamMicStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	streamer := &streamerStub{errs: []error{errors.New("overflow")}}
	streamMicWithRetry(ctx, streamer, io.Discard,
		func(time.Duration) { t.Fatal("should not wait after cancel") },
		func(string, ...any) {},
	)

	if len(streamer.errs) != 1 {
		t.Fatalf("expected no stream attempts after cancel, %d errors left", len(streamer.errs))
	}
}
