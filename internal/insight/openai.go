package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// openAIService implements Service against the OpenAI chat completions API.
type openAIService struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	model      string
}

func newOpenAIService(cfg Config, logger *slog.Logger) *openAIService {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &openAIService{
		apiKey: cfg.APIKey,
		model:  model,
		logger: logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *openAIService) Categorize(ctx context.Context, description string) (string, error) {
	prompt := fmt.Sprintf(
		"Pick a single short expense category label (one or two words) for this expense: %q. Respond with the label only.",
		description)

	label, err := s.complete(ctx, "You label personal expenses with concise category names.", prompt, 20)
	if err != nil {
		return "", err
	}

	label = strings.Trim(strings.TrimSpace(label), `."`)
	if label == "" {
		return "", fmt.Errorf("empty category from model")
	}
	return label, nil
}

func (s *openAIService) Narrative(ctx context.Context, summary string) (string, error) {
	prompt := fmt.Sprintf(
		"Here is a 30 day spending summary:\n%s\nWrite two or three friendly sentences of insight about it.",
		summary)

	return s.complete(ctx, "You are a concise personal finance assistant.", prompt, 200)
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *openAIService) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	s.logger.Debug("calling openai", "model", s.model)

	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling openai: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("openai error (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("openai error: status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
