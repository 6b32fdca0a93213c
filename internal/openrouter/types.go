package openrouter

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a chat completions request.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// ChatResponse is the body of a chat completions response.
type ChatResponse struct {
	Choices []Choice `json:"choices"`
}

// Choice is a single completion choice.
type Choice struct {
	Message Message `json:"message"`
}

// Content returns the first choice's message content, or "" when the
// backend returned no choices.
func (r *ChatResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Model describes an available backend model.
type Model struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Pricing *Pricing `json:"pricing"`
}

// Pricing holds per-token prices as decimal strings.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// ModelsResponse is the body of the models listing response.
type ModelsResponse struct {
	Data []Model `json:"data"`
}
