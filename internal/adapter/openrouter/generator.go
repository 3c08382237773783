package openrouter

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

	"litwatch/internal/domain"
	"litwatch/internal/retry"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generator sends prompts to the gateway's /chat/completions endpoint
// and returns the assistant message.
type Generator struct {
	cfg         ClientConfig
	model       string
	temperature float64
}

// NewGenerator constructs a generator using the provided gateway config
// and model name.
func NewGenerator(cfg ClientConfig, model string, temperature float64) *Generator {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 120 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Generator{cfg: cfg, model: model, temperature: temperature}
}

// Complete sends the prompt pair to the gateway and returns the trimmed
// assistant text.
func (g *Generator) Complete(ctx context.Context, systemInstruction, userPrompt string, maxTokens int) (string, error) {
	if g.cfg.Limiter != nil {
		if err := g.cfg.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	g.cfg.Logger.Info("generation_started",
		slog.String("model", g.model),
		slog.Int("prompt_chars", len(systemInstruction)+len(userPrompt)),
	)
	start := time.Now()

	messages := []chatMessage{}
	if systemInstruction != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemInstruction})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	reqBody := chatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
	}
	if maxTokens > 0 {
		reqBody.MaxTokens = maxTokens
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", g.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.cfg.Client.Do(req)
	if err != nil {
		g.cfg.Logger.Error("generation_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return "", domain.NewGenerationError("chat.completions", err, true)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		g.cfg.Logger.Error("generation_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		return "", domain.NewGenerationError("chat.completions",
			fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, string(body)),
			retry.RetryableHTTPStatus(resp.StatusCode))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", domain.NewGenerationError("chat.decode", err, false)
	}

	if len(chatResp.Choices) == 0 {
		return "", domain.NewGenerationError("chat.decode",
			fmt.Errorf("chat endpoint returned no choices"), true)
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)

	g.cfg.Logger.Info("generation_completed",
		slog.Int("prompt_tokens", chatResp.Usage.PromptTokens),
		slog.Int("completion_tokens", chatResp.Usage.CompletionTokens),
		slog.Duration("elapsed", time.Since(start)),
	)

	return content, nil
}

// Model returns the wrapped model name.
func (g *Generator) Model() string {
	return g.model
}

var _ domain.TextGenerator = (*Generator)(nil)
