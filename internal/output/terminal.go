// Package output renders session progress and results for the terminal.
package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/agoradev/agora/internal/deliberation"
)

var (
	roundStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	speakerStyle = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	reachedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	missedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Printer writes styled session progress to w.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a Printer.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Turn prints one agent turn as it is recorded.
func (p *Printer) Turn(round int, turn deliberation.Turn) {
	prefix := roundStyle.Render(fmt.Sprintf("[Round %d]", round+1))
	speaker := speakerStyle.Render(turn.AgentID)
	if turn.Err != "" {
		fmt.Fprintf(p.w, "%s %s: %s\n", prefix, speaker, errorStyle.Render("(no contribution: "+turn.Err+")"))
		return
	}
	fmt.Fprintf(p.w, "%s %s %s: %s\n", prefix, speaker, faintStyle.Render("["+turn.Choice+"]"), turn.Message)
}

// RoundComplete prints the round's declared-choice tally.
func (p *Printer) RoundComplete(round deliberation.Round) {
	fmt.Fprintf(p.w, "%s\n", faintStyle.Render(fmt.Sprintf("round %d complete, %d/%d choices declared",
		round.Index+1, len(round.DeclaredChoices()), len(round.Turns))))
}

// Verdict prints a consensus verdict.
func (p *Printer) Verdict(v deliberation.Verdict) {
	if v.Reached {
		fmt.Fprintf(p.w, "%s option %s (rule: %s, round %d)\n",
			reachedStyle.Render("Consensus reached:"), v.Choice, v.Rule, v.Round+1)
		return
	}
	fmt.Fprintf(p.w, "%s (rule: %s, round %d)\n",
		missedStyle.Render("No consensus"), v.Rule, v.Round+1)
}

// Banner prints a phase banner.
func (p *Printer) Banner(text string) {
	fmt.Fprintf(p.w, "\n%s\n\n", bannerStyle.Render("=== "+text+" ==="))
}

// Evaluations prints an evaluation batch as one line per result.
func (p *Printer) Evaluations(batch *deliberation.EvaluationBatch) {
	for _, r := range batch.Results {
		if r.Err != "" {
			fmt.Fprintf(p.w, "  %s x %s: %s\n", r.AgentID, r.OptionID, errorStyle.Render("failed: "+r.Err))
			continue
		}
		fmt.Fprintf(p.w, "  %s x %s: %d/%d %s\n", r.AgentID, r.OptionID, r.Rating, deliberation.RatingMax, faintStyle.Render(r.Reasoning))
	}
	for _, f := range batch.Failures {
		fmt.Fprintf(p.w, "  %s\n", errorStyle.Render(fmt.Sprintf("agent %s failed: %s", f.AgentID, f.Reason)))
	}
}

// Summary prints the terminal session summary.
func (p *Printer) Summary(result *deliberation.SessionResult) {
	p.Banner("Session " + string(result.Outcome))
	fmt.Fprintf(p.w, "Topic: %s\n", result.Topic)
	fmt.Fprintf(p.w, "Rounds completed: %d\n", len(result.Rounds))
	if result.Verdict != nil {
		p.Verdict(*result.Verdict)
	}
}
