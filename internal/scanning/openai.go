package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OpenAIConfig configures the chat completions interpreter
type OpenAIConfig struct {
	APIKey  string
	BaseURL string        // default https://api.openai.com/v1
	Model   string        // default gpt-4o
	Timeout time.Duration // default 30s
}

// OpenAI implements Interpreter using the chat completions API
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
	log    *slog.Logger
}

// NewOpenAI creates a new OpenAI interpreter
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAI{
		cfg:    cfg,
		client: &http.Client{},
		log:    logger,
	}, nil
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Interpret asks the model to restate rawText as the four labelled lines
func (o *OpenAI) Interpret(ctx context.Context, rawText string) (InterpretedText, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	content, err := o.complete(ctx, rawText)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("openai request timed out after %s: %w", o.cfg.Timeout, err)
		}
		return InterpretedText{}, &InterpretationServiceError{Err: err}
	}
	return InterpretedText{RawText: content}, nil
}

func (o *OpenAI) complete(ctx context.Context, rawText string) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:    o.cfg.Model,
		Messages: labelMessages(rawText),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(o.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling openai API: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			o.log.Warn("openai response body close error", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(msg))
	}

	var cc chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cc); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}

	return cc.Choices[0].Message.Content, nil
}
