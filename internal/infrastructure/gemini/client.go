package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/duetapp/duet-sync/pkg/apperr"
)

type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiClient(apiKey string) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-1.5-pro")
	model.SetTemperature(0.3)

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

func (c *GeminiClient) Close() {
	c.client.Close()
}

// Translate renders text from sourceTag into targetTag (BCP-47 tags).
// Failures surface as UNAVAILABLE so the chat engine can roll back its
// optimistic translating state.
func (c *GeminiClient) Translate(ctx context.Context, text, sourceTag, targetTag string) (string, error) {
	prompt := fmt.Sprintf(`
		Translate the following chat message from %s to %s.
		Keep the tone casual and preserve emoji as-is.
		Output: only the translated text, nothing else.

		Message: %s
	`, sourceTag, targetTag, text)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", apperr.Unavailable("translation service failed", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", apperr.Unavailable("translation service returned no content", nil)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	translated := strings.TrimSpace(sb.String())
	if translated == "" {
		return "", apperr.Unavailable("translation service returned empty text", nil)
	}
	return translated, nil
}

func (c *GeminiClient) SuggestIcebreakers(ctx context.Context, selfHobbies, partnerHobbies []string) ([]string, error) {
	prompt := fmt.Sprintf(`
		Generate 3 creative icebreaker messages for a dating app conversation.
		Sender interests: %v
		Recipient interests: %v

		Task: Create 3 distinct opening lines the sender could send.
		Focus on shared interests or interesting contrasts.
		Output: JSON array of strings. Example: ["Hi...", "Hello..."]
	`, selfHobbies, partnerHobbies)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, apperr.Unavailable("icebreaker generation failed", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	responseText := strings.TrimSpace(sb.String())
	// Clean up markdown code blocks if present
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")

	var icebreakers []string
	if err := json.Unmarshal([]byte(responseText), &icebreakers); err != nil {
		// Fallback if JSON parsing fails - just return raw text split by newlines
		lines := strings.Split(responseText, "\n")
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "[") && !strings.HasSuffix(line, "]") {
				icebreakers = append(icebreakers, line)
			}
		}
		if len(icebreakers) == 0 {
			return nil, fmt.Errorf("failed to parse icebreakers: %w", err)
		}
	}

	return icebreakers, nil
}
