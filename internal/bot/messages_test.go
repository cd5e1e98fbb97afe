package bot

import (
	"strings"
	"testing"
)

func TestProgressMessage(t *testing.T) {
	tests := []struct {
		fraction float64
		want     string
	}{
		{0, "20%"},
		{0.1, "20%"},
		{0.25, "40%"},
		{0.45, "60%"},
		{0.65, "80%"},
		{0.85, "99%"},
		{0.99, "99%"},
		{1.5, "99%"},
		{-0.1, "20%"},
	}

	for _, tt := range tests {
		got := progressMessage(tt.fraction)
		if !strings.Contains(got, tt.want) {
			t.Errorf("progressMessage(%v) = %q, want step %q", tt.fraction, got, tt.want)
		}
	}
}

func TestProgressMessageMonotonic(t *testing.T) {
	prev := -1
	for f := 0.0; f <= 1.0; f += 0.05 {
		msg := progressMessage(f)
		idx := -1
		for i, bar := range progressBars {
			if msg == bar {
				idx = i
				break
			}
		}
		if idx < 0 {
			t.Fatalf("progressMessage(%v) = %q is not a known step", f, msg)
		}
		if idx < prev {
			t.Errorf("progress step went backwards at %v: %d < %d", f, idx, prev)
		}
		prev = idx
	}
}

func TestResultCaption(t *testing.T) {
	if got := resultCaption("image", "2K"); !strings.Contains(got, "Image") || !strings.Contains(got, "2K") {
		t.Errorf("unexpected image caption %q", got)
	}
	if got := resultCaption("video", "4K"); !strings.Contains(got, "Video") || !strings.Contains(got, "4K") {
		t.Errorf("unexpected video caption %q", got)
	}
}
