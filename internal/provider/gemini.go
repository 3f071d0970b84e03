package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider adapts the Gemini SDK's streaming iterator to the Stream
// interface so it can serve as a fallback target.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, modelName: modelName}, nil
}

func (g *GeminiProvider) Close() {
	g.client.Close()
}

func (g *GeminiProvider) Name() string { return "gemini:" + g.modelName }

func (g *GeminiProvider) Generate(ctx context.Context, prompt string, p Params) (*Stream, error) {
	// Models are cheap handles; build one per call so generation parameters
	// never race between concurrent requests.
	model := g.client.GenerativeModel(g.modelName)
	model.SetMaxOutputTokens(int32(p.MaxTokens))
	model.SetTemperature(float32(p.Temperature))
	model.SetTopP(float32(p.TopP))

	iter := model.GenerateContentStream(ctx, genai.Text(prompt))

	// Pull the first chunk synchronously: a call that dies before producing
	// anything must fail here, where the orchestrator can still fall back.
	first, err := iter.Next()
	if err == iterator.Done {
		st := NewStream(1)
		st.Close(nil)
		return st, nil
	}
	if err != nil {
		return nil, g.wrap(err)
	}

	st := NewStream(16)
	go func() {
		if text := chunkText(first); text != "" {
			if err := st.Emit(ctx, text); err != nil {
				st.Close(err)
				return
			}
		}
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				st.Close(nil)
				return
			}
			if err != nil {
				st.Close(g.wrap(err))
				return
			}
			text := chunkText(resp)
			if text == "" {
				continue
			}
			if err := st.Emit(ctx, text); err != nil {
				st.Close(err)
				return
			}
		}
	}()

	return st, nil
}

func (g *GeminiProvider) wrap(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Provider: g.Name()}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &Error{Provider: g.Name(), Status: apiErr.Code, Body: apiErr.Message}
	}
	return &Error{Provider: g.Name(), Status: http.StatusBadGateway, Body: err.Error()}
}

func chunkText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
