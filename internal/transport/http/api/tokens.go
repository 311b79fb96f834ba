package api

import (
	"context"
	"fmt"
	"time"
)

// DefaultAttestationTimeout bounds how long an upload waits for a token.
const DefaultAttestationTimeout = 5 * time.Second

// TokenSource supplies a header token. An empty token means none.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticTokenSource always returns the same token.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}

type timeoutTokenSource struct {
	src     TokenSource
	timeout time.Duration
}

// WithTimeout returns a source that gives up on src after timeout, so a
// hanging provider cannot block the caller.
func WithTimeout(src TokenSource, timeout time.Duration) TokenSource {
	if timeout <= 0 {
		timeout = DefaultAttestationTimeout
	}
	return &timeoutTokenSource{src: src, timeout: timeout}
}

func (t *timeoutTokenSource) Token(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		token string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := t.src.Token(ctx)
		done <- result{token, err}
	}()

	select {
	case r := <-done:
		return r.token, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("token source: %w", ctx.Err())
	}
}
