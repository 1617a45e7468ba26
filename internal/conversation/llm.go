package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// LLMClient enriches free-form replies outside the structured booking
// states. It is never required for the deterministic transitions; absence or
// failure degrades to the scripted prompt the machine already produced.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// GeminiClient implements LLMClient using Google's Gemini API.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a new Gemini LLM client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}
	return &GeminiClient{
		client:  client,
		modelID: modelID,
	}, nil
}

// Complete sends one completion request and returns the text response.
func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	model := c.client.GenerativeModel(c.modelID)
	model.SetTemperature(0.4)
	model.SetMaxOutputTokens(512)
	if strings.TrimSpace(systemPrompt) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userMessage))
	if err != nil {
		return "", fmt.Errorf("conversation: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("conversation: gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New("conversation: gemini returned empty text")
	}
	return out, nil
}

// Close releases the underlying API client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// systemPrompt frames the enrichment completions. The model only rewords and
// answers small talk; booking decisions stay with the state machine.
func systemPrompt(clinicName string) string {
	return fmt.Sprintf(
		"Você é a recepcionista virtual da %s, uma clínica médica brasileira. "+
			"Responda em português, em tom acolhedor e curto (no máximo 3 frases). "+
			"Você NÃO agenda, cancela ou confirma consultas: para isso, oriente a pessoa a "+
			"dizer \"agendar\", \"remarcar\" ou \"cancelar\". Nunca invente horários, preços ou endereços.",
		clinicName,
	)
}
