// Package whatsapp is the outbound channel client for the WhatsApp Cloud
// (Graph) API. It exposes the single best-effort send primitive the
// dispatcher fans out over.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

const DefaultBaseURL = "https://graph.facebook.com/v17.0"

// Config configures the client.
type Config struct {
	PhoneNumberID string
	AccessToken   string
	BaseURL       string // defaults to DefaultBaseURL; tests point this at httptest
	RatePerSec    int    // per-call smoothing; 0 disables the limiter
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logx.Logger
}

func NewClient(cfg Config, httpClient *http.Client, log logx.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return &Client{cfg: cfg, httpClient: httpClient, limiter: lim, log: log}
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Send delivers one text message. Errors are *SendError with a closed kind;
// callers other than logs/metrics treat every kind uniformly as "failed".
func (c *Client) Send(ctx context.Context, to, body string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &SendError{Kind: KindNetwork, Err: err}
		}
	}

	p := textPayload{MessagingProduct: "whatsapp", To: to, Type: "text"}
	p.Text.Body = body
	raw, err := json.Marshal(p)
	if err != nil {
		return &SendError{Kind: KindUnknown, Err: err}
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return &SendError{Kind: KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &SendError{Kind: KindNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Keep a short slice of the body for the log line; the payload itself is
	// not part of the error contract.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	kind := classifyStatus(resp.StatusCode)
	c.log.Warn("whatsapp send rejected",
		logx.String("to", to),
		logx.Int("status", resp.StatusCode),
		logx.String("kind", kind.String()),
		logx.String("body", string(snippet)),
	)
	return &SendError{Kind: kind, Err: fmt.Errorf("status %d", resp.StatusCode)}
}
