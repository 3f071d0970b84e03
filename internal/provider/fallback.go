package provider

import (
	"context"
	"log"
)

// FallbackChain tries the primary provider and, if it fails before yielding
// a usable stream, tries the fallback once with identical parameters. A
// failure of the fallback is the terminal failure; the primary's error is
// only logged. Mid-stream failures never trigger a fallback, since content
// already delivered cannot be re-sent.
type FallbackChain struct {
	primary  Provider
	fallback Provider
}

func NewFallbackChain(primary, fallback Provider) *FallbackChain {
	return &FallbackChain{primary: primary, fallback: fallback}
}

func (f *FallbackChain) Name() string { return f.primary.Name() }

func (f *FallbackChain) Generate(ctx context.Context, prompt string, p Params) (*Stream, error) {
	st, err := f.primary.Generate(ctx, prompt, p)
	if err == nil {
		return st, nil
	}

	log.Printf("WARNING: primary provider %s failed, trying %s: %v", f.primary.Name(), f.fallback.Name(), err)
	return f.fallback.Generate(ctx, prompt, p)
}
