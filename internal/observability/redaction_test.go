// ABOUTME: Tests for log redaction helpers
// ABOUTME: Validates email masking and URL credential stripping

package observability

import "testing"

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		email string
		want  string
	}{
		{
			name:  "normal address",
			email: "callum@example.com",
			want:  "c***@example.com",
		},
		{
			name:  "single character local part",
			email: "a@example.com",
			want:  "a***@example.com",
		},
		{
			name:  "no at sign",
			email: "not-an-email",
			want:  "***",
		},
		{
			name:  "empty",
			email: "",
			want:  "***",
		},
		{
			name:  "leading at sign",
			email: "@example.com",
			want:  "***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MaskEmail(tt.email); got != tt.want {
				t.Errorf("MaskEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{
			name:  "token in query",
			value: "/callback?token=abc123&utm_source=mail",
			want:  "/callback?token=[REDACTED]&utm_source=mail",
		},
		{
			name:  "api key variants",
			value: "https://example.com/?api_key=secret1",
			want:  "https://example.com/?api_key=[REDACTED]",
		},
		{
			name:  "nothing sensitive",
			value: "/some_page_url?utm_medium=email",
			want:  "/some_page_url?utm_medium=email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RedactURL(tt.value); got != tt.want {
				t.Errorf("RedactURL(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
