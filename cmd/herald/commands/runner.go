package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/heraldbot/herald/internal/core/config"
	"github.com/heraldbot/herald/internal/core/engine"
	"github.com/heraldbot/herald/internal/core/pipeline"
	"github.com/heraldbot/herald/internal/integrations/gemini"
	"github.com/heraldbot/herald/internal/integrations/github"
	"github.com/heraldbot/herald/internal/integrations/qdrant"
	"github.com/heraldbot/herald/internal/steps"
	"github.com/heraldbot/herald/internal/tui"
)

// statusReportingStep forwards step lifecycle events to the TUI.
type statusReportingStep struct {
	inner      pipeline.Step
	statusChan chan<- tui.PipelineStatusMsg
}

func (s *statusReportingStep) Name() string {
	return s.inner.Name()
}

func (s *statusReportingStep) Run(ctx *pipeline.Context) error {
	s.statusChan <- tui.PipelineStatusMsg{Step: s.Name(), Status: "started", Message: "Starting..."}

	err := s.inner.Run(ctx)

	if err != nil {
		if errors.Is(err, pipeline.ErrSkipPipeline) {
			s.statusChan <- tui.PipelineStatusMsg{Step: s.Name(), Status: "skipped", Message: string(ctx.Result.SkipReason)}
			return err
		}
		s.statusChan <- tui.PipelineStatusMsg{Step: s.Name(), Status: "error", Message: err.Error()}
		return err
	}

	s.statusChan <- tui.PipelineStatusMsg{Step: s.Name(), Status: "success", Message: "Completed"}
	return nil
}

// runEngine is the shared driver behind the triage and answer commands.
func runEngine(mode pipeline.Mode, number, count int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	deps, err := buildDependencies(cfg, mode)
	if err != nil {
		return err
	}
	defer deps.Close()

	registry := pipeline.NewRegistry()
	steps.RegisterAll(registry)
	eng := engine.New(cfg, deps, registry)

	isCI := os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
	if isCI || !cfg.Interactive {
		if isCI && verbose {
			fmt.Println("[herald] running in CI mode (no TUI)")
		}
		if cfg.Interactive {
			deps.Approver = tui.NewTerminalApprover(os.Stdin, os.Stdout)
		}
		return runPlain(eng, mode, number, count)
	}

	return runWithTUI(eng, deps, mode, number, count)
}

// runPlain executes without the TUI and prints one report line per issue.
func runPlain(eng *engine.Engine, mode pipeline.Mode, number, count int) error {
	start := time.Now()
	outcomes, err := collectOutcomes(eng, mode, number, count)
	if err != nil {
		return err
	}

	var failed int
	for _, o := range outcomes {
		fmt.Println(o.Line())
		if o.Err != nil {
			failed++
		}
	}
	fmt.Printf("processed %d issue(s) in %s\n", len(outcomes), time.Since(start).Round(time.Millisecond))

	if failed == len(outcomes) && failed > 0 {
		return fmt.Errorf("all %d issue(s) failed", failed)
	}
	return nil
}

// runWithTUI shows live pipeline progress and routes approval prompts
// through the terminal UI.
func runWithTUI(eng *engine.Engine, deps *pipeline.Dependencies, mode pipeline.Mode, number, count int) error {
	stepNames, err := pipeline.PresetForMode(mode)
	if err != nil {
		return err
	}

	statusChan := make(chan tui.PipelineStatusMsg)
	model := tui.NewModel(stepNames, statusChan)
	p := tea.NewProgram(model)

	deps.Approver = tui.NewProgramApprover(p)
	eng.WithDecorator(func(s pipeline.Step) pipeline.Step {
		return &statusReportingStep{inner: s, statusChan: statusChan}
	})

	go func() {
		defer close(statusChan)

		start := time.Now()
		outcomes, err := collectOutcomes(eng, mode, number, count)
		if err != nil {
			p.Send(tui.ResultMsg{Success: false, Output: err.Error()})
			return
		}

		var sb strings.Builder
		for _, o := range outcomes {
			sb.WriteString(o.Line() + "\n")
		}
		fmt.Fprintf(&sb, "processed %d issue(s) in %s", len(outcomes), time.Since(start).Round(time.Millisecond))
		p.Send(tui.ResultMsg{Success: true, Output: sb.String()})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// collectOutcomes runs one issue or a batch depending on flags.
func collectOutcomes(eng *engine.Engine, mode pipeline.Mode, number, count int) ([]*engine.Outcome, error) {
	ctx := context.Background()
	if number > 0 {
		return []*engine.Outcome{eng.RunOnce(ctx, mode, number)}, nil
	}
	return eng.RunBatch(ctx, mode, count)
}

// loadConfig resolves, loads and validates the configuration, then folds
// in the command-line overrides.
func loadConfig() (*config.Config, error) {
	path := config.FindConfigPath(cfgFile)
	if path == "" {
		if cfgFile != "" {
			return nil, fmt.Errorf("config file %s not found", cfgFile)
		}
		return nil, fmt.Errorf("no config file found (expected .github/herald.yaml)")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose {
		fmt.Printf("loaded config from %s\n", path)
	}

	if interactive {
		cfg.Interactive = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildDependencies constructs the external clients the mode needs.
// Environment variables take precedence over config-file credentials so
// secrets can stay out of the file.
func buildDependencies(cfg *config.Config, mode pipeline.Mode) (*pipeline.Dependencies, error) {
	deps := &pipeline.Dependencies{DryRun: dryRun}

	token := os.Getenv("GITHUB_TOKEN")
	if token == "" && !dryRun {
		fmt.Println("warning: GITHUB_TOKEN not set, writes will fail")
	}
	deps.Tracker = github.NewClient(context.Background(), token)

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		geminiKey = cfg.LLM.APIKey
	}
	llm, err := gemini.NewLLMClient(geminiKey, cfg.LLM.Model)
	if err != nil {
		return nil, err
	}
	deps.Classifier = llm
	deps.Judge = llm
	deps.Composer = llm

	if mode != pipeline.ModeAnswer {
		return deps, nil
	}

	embedKey := os.Getenv("GEMINI_API_KEY")
	if embedKey == "" {
		embedKey = cfg.Embedding.APIKey
	}
	embedder, err := gemini.NewEmbedder(embedKey, cfg.Embedding.Model)
	if err != nil {
		return nil, err
	}
	deps.Embedder = embedder

	qdrantURL := os.Getenv("QDRANT_URL")
	if qdrantURL == "" {
		qdrantURL = cfg.Qdrant.URL
	}
	if qdrantURL == "" {
		qdrantURL = "localhost:6334"
	}
	qdrantKey := os.Getenv("QDRANT_API_KEY")
	if qdrantKey == "" {
		qdrantKey = cfg.Qdrant.APIKey
	}

	store, err := qdrant.NewClient(qdrantURL, qdrantKey)
	if err != nil {
		return nil, err
	}
	deps.Search = store

	return deps, nil
}
