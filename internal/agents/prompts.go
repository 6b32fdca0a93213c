package agents

import (
	"fmt"
	"strings"

	"github.com/agoradev/agora/internal/deliberation"
	"github.com/agoradev/agora/internal/deliberation/memory"
	"github.com/agoradev/agora/internal/openrouter"
)

func proposalSystemPrompt(agent deliberation.Agent, prompt deliberation.Prompt) string {
	var sb strings.Builder
	if agent.Persona != "" {
		sb.WriteString(agent.Persona)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "You are %s, a participant in a group deliberation. The question is: %s\n", agent.Name, prompt.Topic)
	fmt.Fprintf(&sb, "The group must settle on exactly one of these options: %s.\n\n", strings.Join(prompt.Options, ", "))
	sb.WriteString(`Respond with ONLY a JSON object in this exact format:
{"message": "<what you say to the group>", "choice": "<the option id you currently back>", "assessment": "<your private read of the situation>", "peer_analysis": "<your private read of one other participant>", "strategy": "<your private plan for the next round>"}
Do not include any other text or markdown formatting.`)
	return sb.String()
}

func proposalMessages(agent deliberation.Agent, prompt deliberation.Prompt) []openrouter.Message {
	msgs := []openrouter.Message{
		{Role: "system", Content: proposalSystemPrompt(agent, prompt)},
	}
	if prompt.Memory != "" {
		msgs = append(msgs, openrouter.Message{
			Role:    "user",
			Content: "Your private notes from earlier rounds:\n" + prompt.Memory,
		})
	}
	for _, line := range prompt.Transcript {
		msgs = append(msgs, openrouter.Message{
			Role:    "user",
			Content: fmt.Sprintf("%s: %s", line.Speaker, line.Message),
		})
	}
	msgs = append(msgs, openrouter.Message{
		Role:    "user",
		Content: fmt.Sprintf("Round %d. It's your turn to speak.", prompt.Round+1),
	})
	return msgs
}

func ratingMessages(agent deliberation.Agent, options []string) []openrouter.Message {
	var sb strings.Builder
	if agent.Persona != "" {
		sb.WriteString(agent.Persona)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "You are %s. Rate EVERY one of these options on a scale of %d (strongly oppose) to %d (strongly support): %s.\n",
		agent.Name, deliberation.RatingMin, deliberation.RatingMax, strings.Join(options, ", "))
	sb.WriteString(`Respond with ONLY a JSON object in this exact format:
{"ratings": [{"option": "<option id>", "rating": <1-4>, "reasoning": "<one sentence>"}]}
Include one entry per option. No other text.`)
	return []openrouter.Message{{Role: "system", Content: sb.String()}}
}

func summaryMessages(kind memory.SummaryKind, inputs []string) ([]openrouter.Message, error) {
	var system string
	switch kind {
	case memory.SummaryRecap:
		system = "Summarize what happened in this deliberation round in two or three factual sentences. No opinions."
	case memory.SummaryPeer:
		system = "Analyze this participant's behavior in the round: what they argued, how firm they seem, what might move them. Three sentences at most."
	case memory.SummaryStrategy:
		system = "Given this recap and peer analysis, state ONE concrete action to take next round. One sentence."
	default:
		return nil, fmt.Errorf("agents: unknown summary kind %q", kind)
	}

	return []openrouter.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: strings.Join(inputs, "\n\n")},
	}, nil
}
