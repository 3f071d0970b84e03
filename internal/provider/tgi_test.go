package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func collect(t *testing.T, st *Stream) ([]string, error) {
	t.Helper()
	var frags []string
	for f := range st.Fragments() {
		frags = append(frags, f)
	}
	return frags, st.Err()
}

func TestTGIClient_StreamsFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"token\":{\"text\":\"Hi\"}}\n\n")
		fmt.Fprint(w, "data: {\"token\":{\"text\":\" there\"}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewTGIClient("primary", srv.URL, "key", 5*time.Second)
	st, err := c.Generate(context.Background(), "[INST] Hello [/INST]", Params{MaxTokens: 100})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	frags, streamErr := collect(t, st)
	if streamErr != nil {
		t.Fatalf("Stream ended with error: %v", streamErr)
	}
	if len(frags) != 2 || frags[0] != "Hi" || frags[1] != " there" {
		t.Errorf("Expected fragments [Hi,  there], got %v", frags)
	}
}

func TestTGIClient_SkipsUnparseableFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"token\":{\"text\":\"ok\"}}\n\n")
		fmt.Fprint(w, "data: {not json at all\n\n")
		fmt.Fprint(w, ": comment line\n\n")
		fmt.Fprint(w, "data: {\"token\":{\"text\":\"!\"}}\n\n")
	}))
	defer srv.Close()

	c := NewTGIClient("primary", srv.URL, "", 5*time.Second)
	st, err := c.Generate(context.Background(), "prompt", Params{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	frags, streamErr := collect(t, st)
	if streamErr != nil {
		t.Fatalf("Bad frames must not be fatal, got: %v", streamErr)
	}
	if len(frags) != 2 || frags[0] != "ok" || frags[1] != "!" {
		t.Errorf("Expected fragments [ok, !], got %v", frags)
	}
}

func TestTGIClient_SkipsSpecialTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"token\":{\"text\":\"</s>\",\"special\":true}}\n\n")
		fmt.Fprint(w, "data: {\"token\":{\"text\":\"word\"}}\n\n")
	}))
	defer srv.Close()

	c := NewTGIClient("primary", srv.URL, "", 5*time.Second)
	st, err := c.Generate(context.Background(), "prompt", Params{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	frags, _ := collect(t, st)
	if len(frags) != 1 || frags[0] != "word" {
		t.Errorf("Special tokens must not be forwarded, got %v", frags)
	}
}

func TestTGIClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":"model overloaded"}`)
	}))
	defer srv.Close()

	c := NewTGIClient("primary", srv.URL, "", 5*time.Second)
	_, err := c.Generate(context.Background(), "prompt", Params{})
	if err == nil {
		t.Fatal("Expected error for 503 response")
	}

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected *provider.Error, got %T", err)
	}
	if provErr.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", provErr.Status)
	}
}

func TestTGIClient_HeaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewTGIClient("primary", srv.URL, "", 50*time.Millisecond)
	_, err := c.Generate(context.Background(), "prompt", Params{})
	if err == nil {
		t.Fatal("Expected timeout error")
	}

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Expected *provider.TimeoutError, got %T: %v", err, err)
	}
}

func TestStream_ErrVisibleAfterClose(t *testing.T) {
	st := NewStream(1)
	want := errors.New("boom")
	go func() {
		st.Emit(context.Background(), "a")
		st.Close(want)
	}()

	var got []string
	for f := range st.Fragments() {
		got = append(got, f)
	}
	if st.Err() != want {
		t.Errorf("Expected stream error %v, got %v", want, st.Err())
	}
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("Expected one fragment before failure, got %v", got)
	}
}
