package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// StubEncoder stands in for ffmpeg. It writes a marker naming the source into
// the destination and records every call.
type StubEncoder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

// NewStubEncoder returns an encoder that succeeds for every source.
func NewStubEncoder() *StubEncoder {
	return &StubEncoder{fail: make(map[string]error)}
}

// FailFor makes Encode return err for src.
func (s *StubEncoder) FailFor(src string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = errors.New("stub encoder failure")
	}
	s.fail[src] = err
}

// Encode implements encoder.Encoder.
func (s *StubEncoder) Encode(_ context.Context, src, dst string, bitrateKbps int) error {
	s.mu.Lock()
	s.calls = append(s.calls, src)
	failErr := s.fail[src]
	s.mu.Unlock()

	if failErr != nil {
		return failErr
	}
	return os.WriteFile(dst, []byte(fmt.Sprintf("encoded %s at %dk\n", src, bitrateKbps)), 0o644)
}

// Calls returns the number of Encode invocations.
func (s *StubEncoder) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Sources returns the sources passed to Encode, in call order.
func (s *StubEncoder) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Reset clears the recorded calls.
func (s *StubEncoder) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}
