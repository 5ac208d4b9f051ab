package models

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, body string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("invalid test JSON %q: %v", body, err)
	}
	return v
}

func TestSubmissionFromPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		want      Submission
		wantValid bool
	}{
		{
			name: "complete payload with numeric startedAt",
			body: `{"name":"  Ana ","email":"ana@example.com","company":"ACME","budget":"5k","message":" hello there ","honeypot":"","startedAt":1700000000000}`,
			want: Submission{Name: "Ana", Email: "ana@example.com", Company: "ACME", Budget: "5k", Message: "hello there", StartedAt: 1700000000000},
			wantValid: true,
		},
		{
			name:      "startedAt as string",
			body:      `{"startedAt":" 1700000000000 "}`,
			want:      Submission{StartedAt: 1700000000000},
			wantValid: true,
		},
		{
			name: "absent fields become empty",
			body: `{}`,
			want: Submission{},
		},
		{
			name: "non-string values are coerced",
			body: `{"name":42,"email":true,"message":null,"honeypot":{"a":1}}`,
			want: Submission{Name: "42", Email: "true", Honeypot: `{"a":1}`},
		},
		{
			name: "array payload",
			body: `["name","email"]`,
			want: Submission{},
		},
		{
			name: "string payload",
			body: `"hello"`,
			want: Submission{},
		},
		{
			name: "non-numeric startedAt",
			body: `{"startedAt":"yesterday"}`,
			want: Submission{},
		},
		{
			name: "infinite startedAt",
			body: `{"startedAt":"Inf"}`,
			want: Submission{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SubmissionFromPayload(decode(t, tt.body))
			tt.want.StartedAtValid = tt.wantValid
			if got != tt.want {
				t.Errorf("SubmissionFromPayload() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestValidationResult(t *testing.T) {
	t.Parallel()

	ok := ValidationResult{FieldName: "", FieldEmail: "", FieldMessage: ""}
	if !ok.OK() {
		t.Error("OK() = false for all-empty result")
	}
	if _, found := ok.FirstInvalid(); found {
		t.Error("FirstInvalid() found a field in an all-empty result")
	}

	bad := ValidationResult{FieldName: "", FieldEmail: "bad", FieldMessage: "short"}
	if bad.OK() {
		t.Error("OK() = true with failing fields")
	}
	if key, found := bad.FirstInvalid(); !found || key != FieldEmail {
		t.Errorf("FirstInvalid() = %q, %v; want email", key, found)
	}
}

func TestSubmissionState_Terminal(t *testing.T) {
	t.Parallel()

	terminal := []SubmissionState{StateRateLimited, StateBotRejected, StateTimingRejected, StateInvalid, StateMisconfigured, StateDelivered, StateFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	for _, s := range []SubmissionState{StateReceived, StateValidated, StatePrimaryAttempted, StateBackupAttempted} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}
