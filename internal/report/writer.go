// Package report exports a finished session to disk: the full result as
// JSON, evaluation ratings as CSV, and a human-readable Markdown
// transcript. The orchestration core hands over a SessionResult and makes
// no assumptions about these formats.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agoradev/agora/internal/deliberation"
)

// GenerateSlug derives a filesystem-friendly directory name from a topic.
func GenerateSlug(topic string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(topic) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		case !lastDash:
			sb.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if len(slug) > 48 {
		slug = strings.Trim(slug[:48], "-")
	}
	if slug == "" {
		slug = "session"
	}
	return slug
}

// CreateOutputDir creates {base}/{slug} and returns its path.
func CreateOutputDir(base, slug string) (string, error) {
	dir := filepath.Join(base, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: creating output directory: %w", err)
	}
	return dir, nil
}

// Writer exports session artifacts into a directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer targeting dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteJSON writes the complete SessionResult to session.json.
func (w *Writer) WriteJSON(result *deliberation.SessionResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encoding session: %w", err)
	}
	return w.writeFile("session.json", data)
}

// WriteCSV writes all evaluation results to ratings.csv. Sessions without
// evaluation phases produce a header-only file.
func (w *Writer) WriteCSV(result *deliberation.SessionResult) error {
	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	cw.Write([]string{"phase", "agent_id", "option_id", "rating", "reasoning", "error"})
	writeBatch(cw, "pre", result.PreEvaluation)
	writeBatch(cw, "post", result.PostEvaluation)
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: encoding ratings: %w", err)
	}
	return w.writeFile("ratings.csv", []byte(sb.String()))
}

func writeBatch(cw *csv.Writer, phase string, batch *deliberation.EvaluationBatch) {
	if batch == nil {
		return
	}
	for _, r := range batch.Results {
		rating := ""
		if r.Err == "" {
			rating = strconv.Itoa(r.Rating)
		}
		cw.Write([]string{phase, r.AgentID, r.OptionID, rating, r.Reasoning, r.Err})
	}
}

// WriteMarkdown writes the transcript and verdict to transcript.md.
func (w *Writer) WriteMarkdown(result *deliberation.SessionResult) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", result.Topic)
	fmt.Fprintf(&sb, "Session `%s`, outcome: **%s**\n\n", result.SessionID, result.Outcome)
	fmt.Fprintf(&sb, "Options: %s\n\n", strings.Join(result.Options, ", "))

	for _, round := range result.Rounds {
		fmt.Fprintf(&sb, "## Round %d\n\n", round.Index+1)
		fmt.Fprintf(&sb, "Speaking order: %s\n\n", strings.Join(round.Order, " → "))
		for _, turn := range round.Turns {
			if turn.Err != "" {
				fmt.Fprintf(&sb, "- **%s**: _no contribution (%s)_\n", turn.AgentID, turn.Err)
				continue
			}
			fmt.Fprintf(&sb, "- **%s** (choice %s): %s\n", turn.AgentID, turn.Choice, turn.Message)
		}
		sb.WriteString("\n")
	}

	if result.Verdict != nil {
		v := result.Verdict
		fmt.Fprintf(&sb, "## Verdict\n\n")
		if v.Reached {
			fmt.Fprintf(&sb, "Consensus reached on option **%s** in round %d under rule %s.\n", v.Choice, v.Round+1, v.Rule)
		} else {
			fmt.Fprintf(&sb, "No consensus under rule %s after %d rounds.\n", v.Rule, len(result.Rounds))
		}
	}

	return w.writeFile("transcript.md", []byte(sb.String()))
}

func (w *Writer) writeFile(name string, data []byte) error {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: writing %s: %w", name, err)
	}
	return nil
}
