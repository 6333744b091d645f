package tui

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

// blockedReader returns a reader whose Read never completes.
func blockedReader() (io.Reader, func()) {
	r, w := io.Pipe()
	return r, func() { _ = w.Close() }
}

func TestTerminalApprover(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"yes word", "yes\n", true},
		{"uppercase", "Y\n", true},
		{"no", "n\n", false},
		{"empty defaults to denial", "\n", false},
		{"garbage defaults to denial", "sure\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			a := NewTerminalApprover(strings.NewReader(tt.input), &out)

			got, err := a.Approve(context.Background(), "Apply label")
			if err != nil {
				t.Fatalf("Approve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Approve(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "Apply label") {
				t.Error("preview not shown to the user")
			}
		})
	}
}

func TestTerminalApproverTimeout(t *testing.T) {
	// A reader that never delivers a line.
	blocked, release := blockedReader()
	defer release()
	var out strings.Builder
	a := NewTerminalApprover(blocked, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	got, err := a.Approve(ctx, "Apply label")
	if got {
		t.Error("timed-out approval returned true")
	}
	if err == nil {
		t.Error("timed-out approval returned no error")
	}
}
