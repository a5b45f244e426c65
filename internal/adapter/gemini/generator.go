package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// Generator produces free-text answers from the Gemini generative model.
type Generator struct {
	client *genai.Client
	model  string
}

func NewGenerator(client *genai.Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

// Generate returns the model's text response for prompt, or an empty string
// when the model returns no candidates. Callers decide how to degrade.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(0.1)
	m.SetTopP(0.9)
	m.SetMaxOutputTokens(1500)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
