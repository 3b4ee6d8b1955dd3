package browser

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "product_page", "product_page"},
		{"spaces", "before buy now", "before_buy_now"},
		{"unsafe chars", `a/b\c*d?e"f:g<h>i|j`, "abcdefghij"},
		{"mixed", "Widget Deluxe (64GB) / Blue", "Widget_Deluxe_(64GB)__Blue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("x", 120)
	got := SanitizeFilename(long)
	if len(got) != 50 {
		t.Errorf("Expected length 50, got %d", len(got))
	}
}
