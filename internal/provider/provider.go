package provider

import (
	"context"
	"fmt"
)

// Params are the generation parameters sent with every provider call.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Provider is one external text-generation endpoint serving one model.
// Generate returns an error for any failure before a usable stream exists
// (connect failure, non-2xx status, header timeout). Failures after that
// surface through Stream.Err.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, p Params) (*Stream, error)
}

// Stream is a finite lazy sequence of generated text fragments. Fragments
// is closed on end-of-stream; Err is valid only after that.
type Stream struct {
	ch  chan string
	err error
}

func NewStream(buffer int) *Stream {
	return &Stream{ch: make(chan string, buffer)}
}

func (s *Stream) Fragments() <-chan string { return s.ch }

// Err reports how the stream ended. Nil means a clean end-of-stream.
func (s *Stream) Err() error { return s.err }

// Emit delivers one fragment to the consumer, aborting if ctx is done so a
// stalled consumer never strands the producing goroutine.
func (s *Stream) Emit(ctx context.Context, fragment string) error {
	select {
	case s.ch <- fragment:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream. Must be called exactly once by the producer.
func (s *Stream) Close(err error) {
	s.err = err
	close(s.ch)
}

// Error is a provider call that came back non-2xx or otherwise broken.
type Error struct {
	Provider string
	Status   int
	Body     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.Status, e.Body)
}

// TimeoutError is a provider that did not respond within the bounded wait.
type TimeoutError struct {
	Provider string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s: timed out", e.Provider)
}
