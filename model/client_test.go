package model_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wirechat/wirechat/core/protocol"
	"github.com/wirechat/wirechat/model"
)

func testConfig(baseURL string) model.Config {
	cfg := model.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	return cfg
}

func userTurns(content string) []protocol.Turn {
	return []protocol.Turn{protocol.NewTurn(protocol.RoleUser, content)}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	cfg := model.DefaultConfig()

	if _, err := model.NewClient(&cfg); !errors.Is(err, model.ErrMissingAPIKey) {
		t.Errorf("got error %v, want ErrMissingAPIKey", err)
	}
}

func TestComplete(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"hi there"}}]}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	client, err := model.NewClient(&cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	out, err := client.Complete(context.Background(), userTurns("hello"), model.Params{})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if out != "hi there" {
		t.Errorf("got %q, want %q", out, "hi there")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("got auth header %q, want bearer key", gotAuth)
	}
	if !strings.Contains(gotBody, `"model":"qwen-plus"`) {
		t.Errorf("request body %s missing default model", gotBody)
	}
	if strings.Contains(gotBody, "enable_search") {
		t.Errorf("request body %s should omit enable_search when unset", gotBody)
	}
}

func TestComplete_ParamOverrides(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	client, _ := model.NewClient(&cfg)

	temp := 0.2
	_, err := client.Complete(context.Background(), userTurns("hello"), model.Params{
		Model:        "qwen-max",
		Temperature:  &temp,
		MaxTokens:    256,
		EnableSearch: true,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	for _, want := range []string{`"model":"qwen-max"`, `"temperature":0.2`, `"max_tokens":256`, `"enable_search":true`} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body %s missing %s", gotBody, want)
		}
	}
}

func TestComplete_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	client, _ := model.NewClient(&cfg)

	_, err := client.Complete(context.Background(), userTurns("hello"), model.Params{})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got error %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("got status %d, want 429", apiErr.Status)
	}
	if apiErr.Message != "rate limited" {
		t.Errorf("got message %q, want %q", apiErr.Message, "rate limited")
	}
}

func TestComplete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	client, _ := model.NewClient(&cfg)

	if _, err := client.Complete(context.Background(), userTurns("hello"), model.Params{}); err == nil {
		t.Error("empty choices should be an error")
	}
}

func sseHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}
}

func TestStream_FragmentOrder(t *testing.T) {
	server := httptest.NewServer(sseHandler(
		`data: {"choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		`data: {"choices":[{"index":0,"delta":{"content":"Hello"}}]}`,
		`: keep-alive comment`,
		`data: {"choices":[{"index":0,"delta":{"content":", "}}]}`,
		`data: {"choices":[{"index":0,"delta":{"content":"world"}}]}`,
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
	))
	defer server.Close()

	cfg := testConfig(server.URL)
	client, _ := model.NewClient(&cfg)

	stream, err := client.Stream(context.Background(), userTurns("hi"), model.Params{})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	var fragments []string
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		fragments = append(fragments, fragment)
	}

	want := []string{"Hello", ", ", "world"}
	if len(fragments) != len(want) {
		t.Fatalf("got %d fragments %v, want %d", len(fragments), fragments, len(want))
	}
	for i, fragment := range want {
		if fragments[i] != fragment {
			t.Errorf("fragment %d: got %q, want %q", i, fragments[i], fragment)
		}
	}

	// A terminated stream stays terminated.
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("Recv after EOF: got %v, want io.EOF", err)
	}
}

func TestStream_EOFWithoutDoneMarker(t *testing.T) {
	server := httptest.NewServer(sseHandler(
		`data: {"choices":[{"index":0,"delta":{"content":"only"}}]}`,
	))
	defer server.Close()

	cfg := testConfig(server.URL)
	client, _ := model.NewClient(&cfg)

	stream, err := client.Stream(context.Background(), userTurns("hi"), model.Params{})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	if fragment, err := stream.Recv(); err != nil || fragment != "only" {
		t.Fatalf("Recv: got (%q, %v), want (only, nil)", fragment, err)
	}
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("got %v, want io.EOF at body end", err)
	}
}

func TestStream_Cancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"first\"}}]}\n\n")
		flusher.Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig(server.URL)
	client, _ := model.NewClient(&cfg)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.Stream(ctx, userTurns("hi"), model.Params{})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	if fragment, err := stream.Recv(); err != nil || fragment != "first" {
		t.Fatalf("Recv: got (%q, %v), want (first, nil)", fragment, err)
	}

	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := stream.Recv()
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not observe cancellation")
	}
}

func TestStream_UpstreamErrorBeforeBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	client, _ := model.NewClient(&cfg)

	_, err := client.Stream(context.Background(), userTurns("hi"), model.Params{})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got error %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", apiErr.Status)
	}
}
