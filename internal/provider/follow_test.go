package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedLog feeds a Follower predetermined chunks, one per poll.
type scriptedLog struct {
	mu     sync.Mutex
	chunks [][]byte
	reads  int
}

func (s *scriptedLog) read(_ context.Context, offset int64) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reads >= len(s.chunks) {
		return nil, offset, nil
	}
	chunk := s.chunks[s.reads]
	s.reads++
	return chunk, offset + int64(len(chunk)), nil
}

// syncBuffer guards writes because Run runs on another goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestFollower_EmitsCompleteLines(t *testing.T) {
	log := &scriptedLog{chunks: [][]byte{
		[]byte("first line\nsecond "),
		[]byte("half\nthird line\n"),
	}}
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		f := &Follower{Read: log.read, Out: &out, Interval: 5 * time.Millisecond}
		done <- f.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if strings.Contains(out.String(), "third line\n") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for output, got %q", out.String())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "first line\nsecond half\nthird line\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFollower_FlushesPartialLineOnStop(t *testing.T) {
	log := &scriptedLog{chunks: [][]byte{
		[]byte("done line\ntrailing without newline"),
	}}
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		f := &Follower{Read: log.read, Out: &out, Interval: 5 * time.Millisecond}
		done <- f.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if strings.Contains(out.String(), "done line\n") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for first line, got %q", out.String())
		case <-time.After(time.Millisecond):
		}
	}
	// The partial line must be buffered, not emitted, while running.
	if strings.Contains(out.String(), "trailing") {
		t.Fatalf("partial line emitted before stop: %q", out.String())
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasSuffix(out.String(), "trailing without newline\n") {
		t.Errorf("partial line not flushed on stop: %q", out.String())
	}
}

func TestFollower_CancelStopsWithinOneTick(t *testing.T) {
	log := &scriptedLog{chunks: nil}
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		f := &Follower{Read: log.read, Out: &out, Interval: 20 * time.Millisecond}
		done <- f.Run(ctx)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("follower did not stop after cancel")
	}
}

func TestFollower_ReadErrorSurfacesAfterFlush(t *testing.T) {
	calls := 0
	readErr := fmt.Errorf("log endpoint gone")
	read := func(_ context.Context, offset int64) ([]byte, int64, error) {
		calls++
		if calls == 1 {
			chunk := []byte("line\npartial")
			return chunk, offset + int64(len(chunk)), nil
		}
		return nil, offset, readErr
	}
	var out syncBuffer

	f := &Follower{Read: read, Out: &out, Interval: time.Millisecond}
	err := f.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "log endpoint gone") {
		t.Fatalf("Run error = %v, want read error", err)
	}
	want := "line\npartial\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFollower_TracksOffsetAcrossPolls(t *testing.T) {
	var offsets []int64
	var mu sync.Mutex
	read := func(_ context.Context, offset int64) ([]byte, int64, error) {
		mu.Lock()
		offsets = append(offsets, offset)
		mu.Unlock()
		if offset == 0 {
			return []byte("0123456789\n"), 11, nil
		}
		return nil, offset, nil
	}
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		f := &Follower{Read: read, Out: &out, Interval: time.Millisecond}
		done <- f.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(offsets)
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for polls")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if offsets[0] != 0 {
		t.Errorf("first read offset = %d, want 0", offsets[0])
	}
	for _, off := range offsets[1:] {
		if off != 11 {
			t.Errorf("subsequent read offset = %d, want 11", off)
		}
	}
}
