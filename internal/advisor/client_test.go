// internal/advisor/client_test.go
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestAdvisor(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient("test-key", "", zaptest.NewLogger(t))
	client.baseURL = server.URL
	return client
}

func candidateBody(text string) string {
	encoded, _ := json.Marshal(text)
	return fmt.Sprintf(`{"candidates": [{"content": {"parts": [{"text": %s}]}}]}`, encoded)
}

func TestChatParsesSuggestedAction(t *testing.T) {
	client := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "should I derisk?")

		fmt.Fprint(w, candidateBody("Given current volatility I'd rebalance: increase stablecoin from 5% to 15%."))
	})

	reply, err := client.Chat(context.Background(), "should I derisk?", []ChatMessage{
		{Sender: "user", Content: "hi"},
		{Sender: "assistant", Content: "hello"},
	})
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "rebalance")
	require.NotNil(t, reply.Action)
	require.Len(t, reply.Action.Changes, 1)
	assert.Equal(t, "stablecoin", reply.Action.Changes[0].Category)
}

func TestChatWithoutAction(t *testing.T) {
	client := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateBody("MON is up 4% today."))
	})

	reply, err := client.Chat(context.Background(), "how is MON doing?", nil)
	require.NoError(t, err)
	assert.Nil(t, reply.Action)
}

func TestTokenInsights(t *testing.T) {
	client := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Contents[0].Parts[0].Text
		assert.Contains(t, prompt, "MON")
		assert.Contains(t, prompt, "Current price: $3.29")
		fmt.Fprint(w, candidateBody("- MON consolidating near $3.30"))
	})

	insights, err := client.TokenInsights(context.Background(), "MON", "Current price: $3.29")
	require.NoError(t, err)
	assert.Contains(t, insights, "consolidating")
}

func TestWhaleAnalysis(t *testing.T) {
	client := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Contents[0].Parts[0].Text
		assert.Contains(t, prompt, "0xwhale")
		assert.Contains(t, prompt, "$82,350")
		fmt.Fprint(w, candidateBody("## Transaction Overview\nLarge transfer detected."))
	})

	analysis, err := client.WhaleAnalysis(context.Background(), WhaleContext{
		Type:     "transfer",
		Symbol:   "MON",
		Name:     "Monad",
		Amount:   "25,000",
		USDValue: "$82,350",
		From:     "0xwhale",
		To:       "0xexchange",
		Age:      "2 hours ago",
		Hash:     "0xabc",
	})
	require.NoError(t, err)
	assert.Contains(t, analysis, "Transaction Overview")
}

func TestGenerateErrors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		client := NewClient("", "", zaptest.NewLogger(t))
		_, err := client.TokenInsights(context.Background(), "MON", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
		assert.False(t, client.Available())
	})

	t.Run("invalid key status", func(t *testing.T) {
		client := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		_, err := client.TokenInsights(context.Background(), "MON", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid or expired")
	})

	t.Run("api error payload", func(t *testing.T) {
		client := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`)
		})
		_, err := client.TokenInsights(context.Background(), "MON", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("no candidates", func(t *testing.T) {
		client := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"candidates": []}`)
		})
		_, err := client.TokenInsights(context.Background(), "MON", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no candidates")
	})
}
