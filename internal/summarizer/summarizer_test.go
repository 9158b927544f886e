package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

func completionServer(t *testing.T, reply string, gotPrompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request failed: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "system" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}
		if gotPrompt != nil {
			*gotPrompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"c1","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, reply)
	}))
}

func runWithQuery(t *testing.T) (*domain.Run, *domain.Breakpoint) {
	t.Helper()
	run := domain.NewRun("r", "demo", "v1", domain.Now())
	ev := domain.NewEvent(domain.EventLLMQuery, domain.TextPayload("what is 2+2"))
	run.AddEvent(ev)
	bp := domain.NewBreakpoint(ev.UUID, domain.PhaseBegin, domain.TextPayload("what is 2+2"))
	ev.Breakpoints = append(ev.Breakpoints, bp)
	return run, bp
}

func TestSummarizeQueryRequest(t *testing.T) {
	var prompt string
	server := completionServer(t, "asks for a sum", &prompt)
	defer server.Close()

	s := New(server.URL, "key", "m", time.Second)
	run, bp := runWithQuery(t)

	summary := s.Summarize(context.Background(), run, bp)
	if summary != "asks for a sum" {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if !strings.Contains(prompt, "what is 2+2") {
		t.Fatalf("prompt does not carry the breakpoint data: %q", prompt)
	}
}

func TestSummarizeIncludesPreviousQuery(t *testing.T) {
	var prompt string
	server := completionServer(t, "follow-up", &prompt)
	defer server.Close()

	s := New(server.URL, "key", "m", time.Second)
	run, _ := runWithQuery(t)
	second := domain.NewEvent(domain.EventLLMQuery, domain.TextPayload("and 3+3"))
	run.AddEvent(second)
	bp := domain.NewBreakpoint(second.UUID, domain.PhaseBegin, domain.TextPayload("and 3+3"))
	second.Breakpoints = append(second.Breakpoints, bp)

	s.Summarize(context.Background(), run, bp)
	if !strings.Contains(prompt, "what is 2+2") {
		t.Fatalf("prompt does not carry the previous query: %q", prompt)
	}
}

func TestSummarizeDisabledWithoutKey(t *testing.T) {
	s := New("http://localhost:1", "", "m", time.Second)
	run, bp := runWithQuery(t)
	if got := s.Summarize(context.Background(), run, bp); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}

func TestSummarizeSuppressesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	}))
	defer server.Close()

	s := New(server.URL, "key", "m", time.Second)
	run, bp := runWithQuery(t)
	if got := s.Summarize(context.Background(), run, bp); got != "" {
		t.Fatalf("expected empty summary on failure, got %q", got)
	}
}

func TestSummarizeSkipsLifecycleBreakpoints(t *testing.T) {
	server := completionServer(t, "should never be called", nil)
	defer server.Close()

	s := New(server.URL, "key", "m", time.Second)
	run := domain.NewRun("r", "demo", "v1", domain.Now())
	ev := domain.NewEvent(domain.EventProgramStarted, domain.TextPayload("demo"))
	run.AddEvent(ev)
	bp := domain.NewBreakpoint(ev.UUID, domain.PhaseBegin, domain.TextPayload("demo"))
	ev.Breakpoints = append(ev.Breakpoints, bp)

	if got := s.Summarize(context.Background(), run, bp); got != "" {
		t.Fatalf("expected no summary for lifecycle breakpoints, got %q", got)
	}
}

func TestSummarizeUnknownEvent(t *testing.T) {
	server := completionServer(t, "x", nil)
	defer server.Close()

	s := New(server.URL, "key", "m", time.Second)
	run := domain.NewRun("r", "demo", "v1", domain.Now())
	bp := domain.NewBreakpoint(domain.NewEvent(domain.EventLLMQuery, nil).UUID, domain.PhaseBegin, nil)
	if got := s.Summarize(context.Background(), run, bp); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}
