package storybook

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCheckAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{"valid", "abc-123", "abc-123", false},
		{"trimmed", "  abc-123\n", "abc-123", false},
		{"empty", "", "", true},
		{"whitespace", "   ", "", true},
		{"angle placeholder", "<YOUR_KEY>", "", true},
		{"replace placeholder", "REPLACE_WITH_API_KEY", "", true},
		{"your placeholder", "your_api_key_here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckAPIKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrAuth) {
					t.Fatalf("Expected ErrAuth, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"auth", fmt.Errorf("%w: x", ErrAuth), 2},
		{"config", fmt.Errorf("%w: x", ErrConfig), 3},
		{"validation", fmt.Errorf("%w: x", ErrValidation), 4},
		{"remote", &RemoteError{StatusCode: 500}, 5},
		{"connectivity", &ConnectivityError{Host: "h", Err: errors.New("refused")}, 6},
		{"timeout", fmt.Errorf("%w: x", ErrTimeout), 7},
		{"io", fmt.Errorf("%w: x", ErrIO), 8},
		{"page wrapped", &PageError{Index: 1, Number: 2, Err: &RemoteError{StatusCode: 422}}, 5},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRemoteErrorMessage(t *testing.T) {
	err := &RemoteError{StatusCode: 401, Body: `{"error":"invalid key"}`, Hint: hintFor(401, false)}
	msg := err.Error()
	for _, want := range []string{"401", `{"error":"invalid key"}`, "LEONARDO_API_KEY"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in %q", want, msg)
		}
	}
}

func TestPageErrorUnwraps(t *testing.T) {
	inner := &ConnectivityError{Host: "cloud.leonardo.ai", Err: errors.New("no such host")}
	err := &PageError{Index: 4, Number: 5, Err: fmt.Errorf("starting generation: %w", inner)}

	var ce *ConnectivityError
	if !errors.As(err, &ce) || ce.Host != "cloud.leonardo.ai" {
		t.Fatalf("Expected ConnectivityError through PageError, got %v", err)
	}
	if !strings.Contains(err.Error(), "page 5") || !strings.Contains(err.Error(), "cloud.leonardo.ai") {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}
