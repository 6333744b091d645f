package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/heraldbot/herald/internal/core/config"
	"github.com/heraldbot/herald/internal/core/pipeline"
	"github.com/heraldbot/herald/internal/tui"
)

// scriptedStep runs a canned function.
type scriptedStep struct {
	name string
	fn   func(ctx *pipeline.Context) error
}

func (s *scriptedStep) Name() string                    { return s.name }
func (s *scriptedStep) Run(ctx *pipeline.Context) error { return s.fn(ctx) }

func newStatusContext() *pipeline.Context {
	issue := &pipeline.Issue{Org: "acme", Repo: "widgets", Number: 1, State: "open"}
	cfg := &config.Config{Owner: "acme", Repo: "widgets"}
	return pipeline.NewContext(context.Background(), pipeline.ModeTriage, issue, nil, cfg)
}

func TestStatusReportingStep(t *testing.T) {
	tests := []struct {
		name        string
		fn          func(ctx *pipeline.Context) error
		wantStatus  string
		wantRunErr  bool
		wantSkipErr bool
	}{
		{
			name:       "success",
			fn:         func(ctx *pipeline.Context) error { return nil },
			wantStatus: "success",
		},
		{
			name: "skip",
			fn: func(ctx *pipeline.Context) error {
				return ctx.Skip("scripted", pipeline.SkipClosed)
			},
			wantStatus:  "skipped",
			wantSkipErr: true,
		},
		{
			name:       "error",
			fn:         func(ctx *pipeline.Context) error { return errors.New("boom") },
			wantStatus: "error",
			wantRunErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statusChan := make(chan tui.PipelineStatusMsg, 4)
			step := &statusReportingStep{
				inner:      &scriptedStep{name: "scripted", fn: tt.fn},
				statusChan: statusChan,
			}

			err := step.Run(newStatusContext())
			close(statusChan)

			switch {
			case tt.wantSkipErr && !errors.Is(err, pipeline.ErrSkipPipeline):
				t.Fatalf("Run() error = %v, want ErrSkipPipeline", err)
			case tt.wantRunErr && err == nil:
				t.Fatal("Run() error = nil, want failure")
			case !tt.wantSkipErr && !tt.wantRunErr && err != nil:
				t.Fatalf("Run() error = %v", err)
			}

			var statuses []string
			for msg := range statusChan {
				if msg.Step != "scripted" {
					t.Errorf("status for step %q, want scripted", msg.Step)
				}
				statuses = append(statuses, msg.Status)
			}
			if len(statuses) != 2 || statuses[0] != "started" || statuses[1] != tt.wantStatus {
				t.Errorf("statuses = %v, want [started %s]", statuses, tt.wantStatus)
			}
		})
	}
}
