package llm

import (
	"context"
	"fmt"
	"sync"
)

// FakeCall records one completion request made against a FakeClient.
type FakeCall struct {
	System string
	User   string
}

// FakeClient is a scripted Client for tests. Replies are returned in
// order; a Handler, when set, takes precedence over the reply list.
type FakeClient struct {
	mu      sync.Mutex
	replies []string
	calls   []FakeCall
	next    int

	// Err, when set, is returned by every call.
	Err error

	// Handler, when set, computes the reply per call.
	Handler func(call int, system, user string) (string, error)
}

// NewFakeClient scripts a client with the given replies.
func NewFakeClient(replies ...string) *FakeClient {
	return &FakeClient{replies: replies}
}

// Complete sends a prompt and returns the next scripted reply.
func (f *FakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem records the call and returns the next scripted reply.
func (f *FakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.next
	f.next++
	f.calls = append(f.calls, FakeCall{System: systemPrompt, User: userPrompt})

	if f.Handler != nil {
		return f.Handler(call, systemPrompt, userPrompt)
	}
	if f.Err != nil {
		return "", f.Err
	}
	if call >= len(f.replies) {
		return "", fmt.Errorf("fake client: no reply scripted for call %d", call)
	}
	return f.replies[call], nil
}

// Calls returns a copy of the recorded requests.
func (f *FakeClient) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many completions were requested.
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
