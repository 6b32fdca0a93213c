package agents

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/agoradev/agora/internal/deliberation/evaluation"
)

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// optionID tolerates backends that emit option identifiers as bare numbers
// instead of strings.
type optionID string

func (o *optionID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = optionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*o = optionID(n.String())
	return nil
}

type proposalPayload struct {
	Message      string   `json:"message"`
	Choice       optionID `json:"choice"`
	Assessment   string   `json:"assessment"`
	PeerAnalysis string   `json:"peer_analysis"`
	Strategy     string   `json:"strategy"`
}

type ratingsPayload struct {
	Ratings []struct {
		Option    optionID `json:"option"`
		Rating    int      `json:"rating"`
		Reasoning string   `json:"reasoning"`
	} `json:"ratings"`
}

// parseProposal extracts a structured proposal from backend output. It
// reports false when no JSON object can be recovered; the caller then
// treats the output as an unparseable free-text message.
func parseProposal(raw string) (proposalPayload, bool) {
	var p proposalPayload
	if !unmarshalLenient(raw, &p) {
		return proposalPayload{}, false
	}
	if p.Message == "" && p.Choice == "" {
		return proposalPayload{}, false
	}
	return p, true
}

// parseRatings extracts the rating tuples from backend output.
func parseRatings(raw string) ([]evaluation.OptionRating, bool) {
	var p ratingsPayload
	if !unmarshalLenient(raw, &p) || len(p.Ratings) == 0 {
		return nil, false
	}
	ratings := make([]evaluation.OptionRating, 0, len(p.Ratings))
	for _, r := range p.Ratings {
		ratings = append(ratings, evaluation.OptionRating{
			OptionID:  string(r.Option),
			Rating:    r.Rating,
			Reasoning: r.Reasoning,
		})
	}
	return ratings, true
}

// unmarshalLenient tries direct JSON, then a markdown code block, then the
// outermost brace pair. Models wrap JSON in prose often enough that all
// three fallbacks earn their keep.
func unmarshalLenient(raw string, v any) bool {
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), v); err == nil {
		return true
	}

	if matches := codeBlockRe.FindStringSubmatch(raw); len(matches) > 1 {
		if err := json.Unmarshal([]byte(strings.TrimSpace(matches[1])), v); err == nil {
			return true
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), v); err == nil {
			return true
		}
	}
	return false
}
