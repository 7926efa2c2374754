package hub

import (
	"strings"
	"testing"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"normal message", "hello there", false},
		{"empty", "", true},
		{"exactly max chars", strings.Repeat("a", MaxTextChars), false},
		{"over max chars", strings.Repeat("a", MaxTextChars+1), true},
		{"over max bytes", strings.Repeat("x", MaxMessageBytes+1), true},
		{"multibyte within char limit", strings.Repeat("é", MaxTextChars), false},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
		{"emoji", "hey 👋", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.text)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage(%q...) error = %v, wantErr %v", truncate(tt.text), err, tt.wantErr)
			}
		})
	}
}

func truncate(s string) string {
	if len(s) > 20 {
		return s[:20]
	}
	return s
}
