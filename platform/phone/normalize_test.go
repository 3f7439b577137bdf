package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"national number", "087 123 4567", "+353871234567"},
		{"already e164", "+353871234567", "+353871234567"},
		{"international with spaces", "+44 7911 123456", "+447911123456"},
		{"whitespace trimmed", "  +353871234567  ", "+353871234567"},
		{"empty", "", ""},
		{"garbage returned as-is", "not-a-number", "not-a-number"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164(tc.input); got != tc.want {
				t.Fatalf("NormalizeE164(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
