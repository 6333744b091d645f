package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ProgramApprover routes approval requests into a running bubbletea
// program and blocks until the user answers or the context elapses.
type ProgramApprover struct {
	program *tea.Program
}

// NewProgramApprover creates an approver bound to a running program.
func NewProgramApprover(p *tea.Program) *ProgramApprover {
	return &ProgramApprover{program: p}
}

// Approve shows the preview and waits for the y/n answer.
func (a *ProgramApprover) Approve(ctx context.Context, preview string) (bool, error) {
	reply := make(chan bool, 1)
	a.program.Send(ApprovalRequestMsg{Preview: preview, Reply: reply})

	select {
	case approved := <-reply:
		return approved, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// TerminalApprover reads a y/n confirmation from a plain reader, for runs
// without the TUI (piped output, CI with interactive mode forced on).
type TerminalApprover struct {
	in  io.Reader
	out io.Writer
}

// NewTerminalApprover creates an approver over the given streams.
func NewTerminalApprover(in io.Reader, out io.Writer) *TerminalApprover {
	return &TerminalApprover{in: in, out: out}
}

// Approve prints the preview and reads one line. Only "y"/"yes" approves.
func (a *TerminalApprover) Approve(ctx context.Context, preview string) (bool, error) {
	fmt.Fprintf(a.out, "\nPending action:\n%s\n\nApply? [y/N] ", preview)

	type answer struct {
		approved bool
		err      error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil {
			ch <- answer{err: err}
			return
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			ch <- answer{approved: true}
		default:
			ch <- answer{}
		}
	}()

	select {
	case got := <-ch:
		return got.approved, got.err
	case <-ctx.Done():
		fmt.Fprintln(a.out, "\napproval wait elapsed, treating as denial")
		return false, ctx.Err()
	}
}
