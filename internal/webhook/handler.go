// Package webhook receives WhatsApp Cloud API callbacks: the GET verification
// handshake and POSTed inbound messages. Text messages get a drafted reply;
// every inbound message refreshes the sender's last-interaction timestamp so
// the notifier's 24h recency gate sees them.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/antoniofrancaib/alan/internal/storage"
	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

var inboundCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "alan",
		Subsystem: "webhook",
		Name:      "inbound_total",
		Help:      "Inbound webhook messages by kind.",
	},
	[]string{"kind"},
)

const fallbackReply = "Sorry, I encountered an error while processing your message. Please try again later."

// Store is the slice of storage the webhook writes.
type Store interface {
	TouchInteraction(ctx context.Context, phone string, at time.Time) error
	AppendInbound(ctx context.Context, m storage.InboundMessage) error
}

// Sender is the outbound channel primitive (whatsapp.Client).
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Replier drafts a conversational answer (openai.Client). May be nil when
// automated replies are disabled.
type Replier interface {
	Reply(ctx context.Context, userMessage string) (string, error)
}

type Handler struct {
	verifyToken string
	store       Store
	sender      Sender
	replier     Replier
	log         logx.Logger
	now         func() time.Time
}

func NewHandler(verifyToken string, store Store, sender Sender, replier Replier, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{
		verifyToken: verifyToken,
		store:       store,
		sender:      sender,
		replier:     replier,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Verify handles the GET handshake: echo hub.challenge when the mode and
// token match, 403 otherwise.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}
	h.log.Warn("webhook verification rejected", logx.String("mode", mode))
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// ---- inbound payload (Cloud API subset) ----

type payload struct {
	Entry []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// Receive handles POSTed webhook events. The provider retries non-2xx
// deliveries, so once the payload parses we always answer 200; reply
// failures are our problem, not the provider's.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		h.log.Warn("webhook payload not JSON", logx.Err(err))
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				h.handleMessage(r.Context(), msg)
			}
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Event received"))
}

func (h *Handler) handleMessage(ctx context.Context, msg inboundMessage) {
	if msg.From == "" {
		return
	}
	kind := msg.Type
	if kind == "" {
		kind = "unknown"
	}
	inboundCounter.WithLabelValues(kind).Inc()

	var text string
	if msg.Type == "text" && msg.Text != nil {
		text = msg.Text.Body
	}

	now := h.now()
	if err := h.store.TouchInteraction(ctx, msg.From, now); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.log.Error("touch interaction failed", logx.String("from", msg.From), logx.Err(err))
	}
	if err := h.store.AppendInbound(ctx, storage.InboundMessage{
		PhoneNumber: msg.From,
		Kind:        kind,
		Body:        text,
		ReceivedAt:  now,
		Replied:     false,
	}); err != nil {
		h.log.Error("inbound log failed", logx.String("from", msg.From), logx.Err(err))
	}

	reply := h.draftReply(ctx, kind, text)
	if reply == "" {
		return
	}
	if err := h.sender.Send(ctx, msg.From, reply); err != nil {
		h.log.Error("webhook reply send failed", logx.String("from", msg.From), logx.Err(err))
	}
}

func (h *Handler) draftReply(ctx context.Context, kind, text string) string {
	if kind != "text" {
		return "[You sent a " + kind + " message. I can only respond to text messages.]"
	}
	if text == "" || h.replier == nil {
		return ""
	}
	reply, err := h.replier.Reply(ctx, text)
	if err != nil {
		h.log.Warn("reply generation failed", logx.Err(err))
		return fallbackReply
	}
	return reply
}
