package sources

import (
	"errors"
	"testing"
)

func TestSanitizePassesThroughUserFacingMessages(t *testing.T) {
	err := &ServerNotFound{DisplayName: "notion"}
	got := Sanitize(err, "call tool")
	if got != err {
		t.Fatalf("expected the original *ServerNotFound to pass through unchanged, got %v (%T)", got, got)
	}
}

func TestSanitizeMasksSensitiveDetails(t *testing.T) {
	err := errors.New("exec: API_KEY=sk-live-abc123 invalid")
	got := Sanitize(err, "start source")
	if got.Error() != "start source failed: internal configuration error" {
		t.Fatalf("expected a masked message, got %q", got.Error())
	}
}

func TestSanitizeMasksInternalFailureDetails(t *testing.T) {
	err := errors.New("dial tcp 127.0.0.1:9: connection refused")
	got := Sanitize(err, "start source")
	if got.Error() != "start source failed: internal error" {
		t.Fatalf("expected a masked message, got %q", got.Error())
	}
}

func TestSanitizeReturnsNilForNilError(t *testing.T) {
	if got := Sanitize(nil, "call tool"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
