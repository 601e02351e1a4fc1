package utils

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Millisecond, "45ms"},
		{1500 * time.Millisecond, "1.5s"},
		{2*time.Minute + 30*time.Second, "2m 30s"},
		{5 * time.Minute, "5m"},
		{75 * time.Minute, "1h 15m"},
		{2 * time.Hour, "2h"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{"short", "timeout", 20, "timeout"},
		{"collapses whitespace", "  bad\n\tgateway  ", 20, "bad gateway"},
		{"cut", "service unavailable", 10, "service..."},
		{"tiny limit", "service unavailable", 2, "..."},
		{"multibyte", "ошибка сервера", 9, "ошибка..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateText(tt.text, tt.maxLen); got != tt.want {
				t.Errorf("TruncateText() = %q, want %q", got, tt.want)
			}
		})
	}
}
