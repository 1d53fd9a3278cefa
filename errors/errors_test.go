package errors

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(KindUnauthenticated, "login required")
	if err.GetKind() != KindUnauthenticated {
		t.Errorf("expected kind unauthenticated, got %s", err.GetKind())
	}
	if err.GetCode() != 401 {
		t.Errorf("expected code 401, got %d", err.GetCode())
	}
	if err.GetMessage() != "login required" {
		t.Errorf("expected message 'login required', got %s", err.GetMessage())
	}

	t.Logf("Error: %s", err.Error())
}

func TestWithMetadata(t *testing.T) {
	err := Forbidden("staff accounts cannot use the cart")

	// Empty metadata should return the same instance
	err2 := err.WithMetadata(map[string]string{})
	if err != err2 {
		t.Error("WithMetadata with empty map should return same instance")
	}

	err3 := err.WithMetadata(map[string]string{"user": "john", "action": "add_to_cart"})
	if err == err3 {
		t.Error("WithMetadata should return new instance")
	}

	metadata := err3.GetMetadata()
	if metadata["user"] != "john" || metadata["action"] != "add_to_cart" {
		t.Errorf("metadata not set correctly: %v", metadata)
	}
}

func TestWithCause(t *testing.T) {
	originalErr := errors.New("connection refused")
	err := Transport("cart update failed").WithCause(originalErr)

	if err.GetCause() != originalErr {
		t.Error("cause not set correctly")
	}
	if !errors.Is(err, originalErr) {
		t.Error("wrapped cause should be reachable through errors.Is")
	}
}

func TestIsMatchesByKind(t *testing.T) {
	a := Rejected("product 7 rejected")
	b := Rejected("order 3 rejected")

	if !Is(a, b) {
		t.Error("errors of the same kind should match")
	}
	if Is(a, Forbidden("nope")) {
		t.Error("errors of different kinds should not match")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"tagged", SessionExpired("refresh failed"), KindSessionExpired},
		{"wrapped", Wrap(errors.New("eof"), KindTransport, "fetch failed"), KindTransport},
		{"plain", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromResponse(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantMsg  string
	}{
		{"forbidden detail", 403, `{"detail":"Admin privileges required"}`, KindForbidden, "Admin privileges required"},
		{"unauthorized", 401, `{"detail":"token not valid"}`, KindUnauthenticated, "token not valid"},
		{"not found", 404, ``, KindNotFound, "Not Found"},
		{"serializer errors", 400, `{"username":["username already exists."]}`, KindRejected, "username: username already exists."},
		{"server error", 500, `boom`, KindRejected, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.status,
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			}
			err := FromResponse(resp)
			if err.GetKind() != tt.wantKind {
				t.Errorf("kind = %s, want %s", err.GetKind(), tt.wantKind)
			}
			if err.GetMessage() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.GetMessage(), tt.wantMsg)
			}
			if err.GetCode() != tt.status {
				t.Errorf("code = %d, want %d", err.GetCode(), tt.status)
			}
		})
	}
}

func TestFromResponseSuccess(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("{}"))}
	if err := FromResponse(resp); err != nil {
		t.Errorf("2xx should map to nil, got %v", err)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, KindTransport, "ignored") != nil {
		t.Error("wrapping nil should return nil")
	}
}
