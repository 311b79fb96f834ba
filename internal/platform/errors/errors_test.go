package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindConfig, "load", "failed to load config",
				errors.New("file not found")),
			contains: []string{"[config:load]", "failed to load config", "file not found"},
		},
		{
			name:     "error without cause",
			err:      New(KindDomain, "validate", "invalid input"),
			contains: []string{"[domain:validate]", "invalid input"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindConfig, "test", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrapKeepsFirstClassification(t *testing.T) {
	inner := New(KindImage, "decode", "bad image")
	outer := Wrap(KindQueue, "replay", "replay failed", fmt.Errorf("item 1: %w", inner))
	if !IsKind(outer, KindImage) {
		t.Fatalf("expected image kind to survive, got %v", outer)
	}

	apiErr := NewStatusError(http.MethodPost, "/api/v1/interpret", http.StatusUnprocessableEntity, nil)
	wrapped := Wrap(KindTransport, "upload", "upload failed", apiErr)
	if wrapped != error(apiErr) {
		t.Fatalf("expected api error to be returned unchanged, got %v", wrapped)
	}

	if Wrap(KindDomain, "noop", "nothing", nil) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindConfig, "test", "message"),
			kind:     KindConfig,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      Wrap(KindDomain, "test", "message", errors.New("cause")),
			kind:     KindDomain,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindConfig, "test", "message"),
			kind:     KindDomain,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindConfig,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestAPIErrorClassification(t *testing.T) {
	netErr := NewNetworkError(http.MethodPost, "https://example.test/api/v1/interpret", errors.New("dial tcp: refused"))
	if !IsNetwork(fmt.Errorf("upload: %w", netErr)) {
		t.Fatal("expected network error to be detected through wrapping")
	}
	if StatusOf(netErr) != StatusNetwork {
		t.Fatalf("unexpected status %d", StatusOf(netErr))
	}
	if !strings.Contains(netErr.Error(), "NETWORK_ERROR") {
		t.Fatalf("unexpected message %q", netErr.Error())
	}

	badGateway := NewStatusError(http.MethodPost, "/x", http.StatusBadGateway, []byte("upstream timeout"))
	if !IsUpstreamUnavailable(badGateway) {
		t.Fatal("expected 502 to be upstream unavailable")
	}
	if IsUpstreamUnavailable(NewStatusError(http.MethodPost, "/x", http.StatusServiceUnavailable, nil)) {
		t.Fatal("503 must not be treated as upstream unavailable")
	}

	messages := map[int]string{
		StatusNetwork:                      "Could not reach",
		http.StatusUnauthorized:            "Session expired",
		http.StatusRequestEntityTooLarge:   "too large",
		http.StatusUnprocessableEntity:     "Validation failed",
		http.StatusBadGateway:              "currently unavailable",
		http.StatusInternalServerError:     "unexpected error",
	}
	for status, want := range messages {
		e := &APIError{Status: status}
		if !strings.Contains(e.UserMessage(), want) {
			t.Errorf("status %d: message %q does not contain %q", status, e.UserMessage(), want)
		}
	}
}
