// Package openai is a minimal chat-completions client used to draft replies
// to inbound WhatsApp messages. Only the single endpoint this service needs
// is covered.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "gpt-3.5-turbo"
	DefaultMaxTokens = 150
)

// systemPrompt keeps replies short and WhatsApp-friendly.
const systemPrompt = `You are a helpful, friendly, and concise assistant communicating via WhatsApp.

Guidelines:
- Keep responses short and to the point (1-3 sentences when possible)
- Be conversational and friendly
- If you don't know something, admit it clearly
- Format important information with *asterisks* for bold text
- Use emojis occasionally to add personality 😊
- Avoid URLs unless specifically requested
- Never mention that you're an AI or discuss your limitations unprompted`

type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logx.Logger
}

func NewClient(cfg Config, httpClient *http.Client, log logx.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, httpClient: httpClient, log: log}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Reply generates a conversational reply to one user message.
func (c *Client) Reply(ctx context.Context, userMessage string) (string, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		MaxTokens: c.cfg.MaxTokens,
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openai response: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("openai decode (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := "unexpected status"
		if out.Error != nil {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("openai status %d: %s", resp.StatusCode, msg)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", errors.New("openai: empty completion")
	}
	return out.Choices[0].Message.Content, nil
}
