package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// TGIClient streams completions from a text-generation-inference style
// endpoint. The wire format is SSE: one "data: {...}" frame per token, with
// an optional "data: [DONE]" sentinel at the end.
type TGIClient struct {
	name       string
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewTGIClient(name, url, apiKey string, timeout time.Duration) *TGIClient {
	return &TGIClient{
		name:   name,
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			// No overall timeout: streams are long-lived. The header
			// timeout bounds how long the provider may sit silent
			// before the first byte.
			Transport: &http.Transport{ResponseHeaderTimeout: timeout},
		},
	}
}

func (c *TGIClient) Name() string { return c.name }

type tgiRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters tgiParameters `json:"parameters"`
	Stream     bool          `json:"stream"`
}

type tgiParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	ReturnFullText bool    `json:"return_full_text"`
}

type tgiFrame struct {
	Token struct {
		Text    string `json:"text"`
		Special bool   `json:"special"`
	} `json:"token"`
	GeneratedText *string `json:"generated_text"`
}

func (c *TGIClient) Generate(ctx context.Context, prompt string, p Params) (*Stream, error) {
	body, err := json.Marshal(tgiRequest{
		Inputs: prompt,
		Parameters: tgiParameters{
			MaxNewTokens:   p.MaxTokens,
			Temperature:    p.Temperature,
			TopP:           p.TopP,
			ReturnFullText: false,
		},
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Provider: c.name}
		}
		return nil, &Error{Provider: c.name, Status: 0, Body: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{Provider: c.name, Status: resp.StatusCode, Body: string(raw)}
	}

	st := NewStream(16)
	go c.consume(ctx, resp.Body, st)
	return st, nil
}

func (c *TGIClient) consume(ctx context.Context, body io.ReadCloser, st *Stream) {
	defer body.Close()

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var frame tgiFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			log.Printf("provider %s: skipping unparseable frame: %v", c.name, err)
			continue
		}
		if frame.Token.Special || frame.Token.Text == "" {
			continue
		}

		if err := st.Emit(ctx, frame.Token.Text); err != nil {
			st.Close(err)
			return
		}
	}

	if err := sc.Err(); err != nil {
		if isTimeout(err) {
			st.Close(&TimeoutError{Provider: c.name})
		} else {
			st.Close(&Error{Provider: c.name, Status: 0, Body: err.Error()})
		}
		return
	}

	st.Close(nil)
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
