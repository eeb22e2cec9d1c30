package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestShelfErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *ShelfError
		wantErr  string
		wantUser string
	}{
		{
			name:     "what only",
			err:      &ShelfError{What: "something broke"},
			wantErr:  "something broke",
			wantUser: "Error: something broke",
		},
		{
			name:     "what and why",
			err:      &ShelfError{What: "something broke", Why: "bad input"},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input",
		},
		{
			name: "full error",
			err: &ShelfError{
				What: "something broke",
				Why:  "bad input",
				Fix:  "try again",
			},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input\n\nFix: try again",
		},
		{
			name: "with cause",
			err: &ShelfError{
				What:  "something broke",
				Cause: errors.New("underlying error"),
			},
			wantErr:  "something broke: underlying error",
			wantUser: "Error: something broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantErr {
				t.Errorf("Error() = %q, want %q", got, tt.wantErr)
			}
			if got := tt.err.UserMessage(); got != tt.wantUser {
				t.Errorf("UserMessage() = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestShelfErrorJSON(t *testing.T) {
	err := NotFound("item", "abc").WithCause(errors.New("no rows"))

	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("MarshalJSON failed: %v", marshalErr)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if result["code"] != string(CodeNotFound) {
		t.Errorf("code = %v, want %v", result["code"], CodeNotFound)
	}
	if result["what"] != "item abc not found" {
		t.Errorf("what = %v, want %v", result["what"], "item abc not found")
	}
	if result["cause"] != "no rows" {
		t.Errorf("cause = %v, want %v", result["cause"], "no rows")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err        *ShelfError
		wantStatus int
	}{
		{ErrNotInitialized(), 400},
		{ErrAlreadyInitialized("/path"), 409},
		{NotFound("item", "x"), 404},
		{Validation("bad", "why"), 400},
		{UnsupportedController("x", "service", "no detail"), 400},
		{Consistency("last context", "why"), 409},
		{ErrConfigInvalid("x", "y"), 400},
		{ErrConfigMissing("x"), 400},
		{ErrServiceUnavailable("github", nil), 503},
		{Wrap(errors.New("x"), "y"), 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestIsMatchesSentinelsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("move item: %w", NotFound("section", "s1"))

	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped NotFound should match ErrNotFound")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("NotFound should not match ErrValidation")
	}
	if !HasCode(err, CodeNotFound) {
		t.Error("HasCode should see through fmt wrapping")
	}
}

func TestWithCause(t *testing.T) {
	original := NotFound("item", "i1")
	cause := errors.New("sql: no rows")
	wrapped := original.WithCause(cause)

	if wrapped.Cause != cause {
		t.Error("WithCause should set the cause")
	}
	if original.Cause != nil {
		t.Error("Original should not be modified")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Error("Unwrap should return the cause")
	}
	if wrapped.Code != original.Code || wrapped.What != original.What {
		t.Error("Code and What should be copied")
	}
}

func TestAsShelfError(t *testing.T) {
	shelfErr := Consistency("x", "y")

	if AsShelfError(shelfErr) == nil {
		t.Error("AsShelfError should return the error")
	}
	if AsShelfError(fmt.Errorf("ctx: %w", shelfErr)) == nil {
		t.Error("AsShelfError should return wrapped ShelfError")
	}
	if AsShelfError(errors.New("regular error")) != nil {
		t.Error("AsShelfError should return nil for non-ShelfError")
	}
	if AsShelfError(nil) != nil {
		t.Error("AsShelfError should return nil for nil error")
	}
}

func TestErrorCodeUniqueness(t *testing.T) {
	codes := []Code{
		CodeNotInitialized,
		CodeAlreadyInitialized,
		CodeValidation,
		CodeNotFound,
		CodeUnsupportedController,
		CodeConsistency,
		CodeConfigInvalid,
		CodeConfigMissing,
		CodeServiceUnavailable,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("duplicate error code: %s", code)
		}
		seen[code] = true
		if _, ok := codeCategories[code]; !ok {
			t.Errorf("code %s has no category", code)
		}
	}
}
