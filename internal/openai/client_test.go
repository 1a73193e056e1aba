package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

func TestReply(t *testing.T) {
	t.Parallel()

	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hi! 😊"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "key", BaseURL: srv.URL}, srv.Client(), logx.Nop())
	reply, err := c.Reply(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi! 😊", reply)

	assert.Equal(t, DefaultModel, gotReq.Model)
	assert.Equal(t, DefaultMaxTokens, gotReq.MaxTokens)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "hello", gotReq.Messages[1].Content)
}

func TestReplyAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "key", BaseURL: srv.URL}, srv.Client(), logx.Nop())
	_, err := c.Reply(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit reached")
}

func TestReplyEmptyCompletion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "key", BaseURL: srv.URL}, srv.Client(), logx.Nop())
	_, err := c.Reply(context.Background(), "hello")
	require.Error(t, err)
}
