package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "llama3",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "EPS of 6.13 is strong."}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 7, "total_tokens": 17}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Options{BaseURL: srv.URL + "/v1", Temperature: DefaultTemperature})
	reply, err := c.Complete(context.Background(), "Analyze EPS")
	require.NoError(t, err)
	assert.Equal(t, "EPS of 6.13 is strong.", reply)

	assert.Equal(t, "llama3", got["model"])
	assert.Equal(t, 0.5, got["temperature"])
	assert.Equal(t, float64(512), got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Analyze EPS", msgs[0].(map[string]any)["content"])
}

func TestOpenAIClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"llama3","choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Options{BaseURL: srv.URL + "/v1"})
	_, err := c.Complete(context.Background(), "hi")
	assert.ErrorContains(t, err, "no completion choices")
}

func TestOpenAIClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewOpenAIClient(Options{BaseURL: srv.URL + "/v1"})
	_, err := c.Complete(context.Background(), "hi")
	assert.Error(t, err)
}
