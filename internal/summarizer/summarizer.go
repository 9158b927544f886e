// Package summarizer asks an external LLM for one-line breakpoint summaries.
// It is strictly best-effort: every failure is logged and yields an empty
// summary, never an error into the controller.
package summarizer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

// Summarizer produces breakpoint summaries through an OpenAI-compatible
// endpoint.
type Summarizer struct {
	client  *Client
	model   string
	timeout time.Duration
}

// New creates a summarizer. With an empty apiKey the summarizer is disabled
// and always returns an empty summary.
func New(baseURL, apiKey, model string, timeout time.Duration) *Summarizer {
	s := &Summarizer{model: model, timeout: timeout}
	if apiKey == "" {
		log.Printf("Summarizer disabled: no API key configured")
		return s
	}
	s.client = NewClient(baseURL, apiKey, timeout)
	return s
}

// Summarize returns a one-line summary for the breakpoint, or "" when the
// breakpoint is not summarizable or the LLM is unavailable.
func (s *Summarizer) Summarize(ctx context.Context, run *domain.Run, bp *domain.Breakpoint) string {
	if s.client == nil {
		return ""
	}
	ev := run.EventByID(bp.EventID)
	if ev == nil {
		return ""
	}

	prompt := s.promptFor(run, ev, bp)
	if prompt == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, &ChatCompletionRequest{
		Model: s.model,
		Messages: []ChatMessage{
			{Role: "system", Content: fmt.Sprintf("%s\n\n%q", prompt, renderPayload(bp.OriginalData))},
		},
	})
	if err != nil {
		log.Printf("Summarization failed: %v", err)
		return ""
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		log.Printf("Summarization returned no choices")
		return ""
	}
	return resp.Choices[0].Message.Content
}

// promptFor selects the summarization prompt for the breakpoint. Query
// request summaries include the previous query's prompt so the summary can
// focus on what changed.
func (s *Summarizer) promptFor(run *domain.Run, ev *domain.Event, bp *domain.Breakpoint) string {
	switch ev.Type {
	case domain.EventLLMQuery:
		if bp.Phase == domain.PhaseBegin {
			previous := ""
			if queries := run.PreviousQueries(ev); len(queries) > 0 {
				if prior := queries[len(queries)-1].BeginBreakpoint(); prior != nil {
					previous = renderPayload(prior.Data())
				}
			}
			return fmt.Sprintf("%s\n\n%q\n\nBelow is the message to summarize:", promptQueryRequest, previous)
		}
		return promptQueryResponse
	case domain.EventToolInvocation:
		if bp.Phase == domain.PhaseBegin {
			return promptToolCall
		}
		return promptToolResult
	}
	return ""
}

func renderPayload(p *domain.Payload) string {
	if p == nil {
		return ""
	}
	if p.Kind == domain.PayloadText {
		return p.Text
	}
	return string(p.JSON)
}
