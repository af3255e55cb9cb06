// internal/advisor/client.go
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel          = "gemini-2.0-flash"
	defaultRequestTimeout = 30 * time.Second
)

// ChatMessage is one turn of an advisor conversation.
type ChatMessage struct {
	Sender  string `json:"sender"` // "user" or "assistant"
	Content string `json:"content"`
}

// Reply is the advisor's answer plus any portfolio action it implies.
type Reply struct {
	Content string  `json:"content"`
	Action  *Action `json:"action,omitempty"`
}

// WhaleContext describes a whale transaction for analysis prompts.
type WhaleContext struct {
	Type     string
	Symbol   string
	Name     string
	Amount   string
	USDValue string
	From     string
	To       string
	Age      string
	Hash     string
}

// Client calls a Gemini-compatible generative language API.
type Client struct {
	client  *http.Client
	logger  *zap.Logger
	baseURL string
	apiKey  string
	model   string
}

func NewClient(apiKey, model string, logger *zap.Logger) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger.Named("advisor"),
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.apiKey != "" && c.apiKey != "your_gemini_api_key_here"
}

// Chat answers a user message with portfolio context and parses any
// allocation changes the model suggests.
func (c *Client) Chat(ctx context.Context, message string, history []ChatMessage) (*Reply, error) {
	var formatted strings.Builder
	for _, msg := range history {
		role := "Assistant"
		if msg.Sender == "user" {
			role = "User"
		}
		fmt.Fprintf(&formatted, "%s: %s\n\n", role, msg.Content)
	}

	prompt := fmt.Sprintf(`You are MonoFi-AI, an AI assistant specializing in cryptocurrency portfolio management and market analysis on Monad Blockchain.

Focus on these tokens available in the portfolio: MON, USDC, USDT, WBTC, WETH, WSOL, PINGU, sMON, aprMON, DAK, YAKI, CHOG, shMON.

Note: USDC is the primary currency for portfolio management and transactions.

Token categories include:
- Layer 1 (l1): MON, WSOL
- Stablecoins: USDC, USDT
- Big Cap: WBTC, WETH
- DeFi: sMON, aprMON, DAK, shMON
- Meme: PINGU, YAKI, CHOG

When suggesting portfolio changes, provide specific allocation percentages and reasoning.

Previous conversation:
%s
User's latest message: %s

Respond in a helpful, concise manner. If suggesting portfolio changes, include specific allocation adjustments.`, formatted.String(), message)

	content, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &Reply{
		Content: content,
		Action:  ParseAction(content),
	}, nil
}

// TokenInsights produces a short market analysis for one token.
func (c *Client) TokenInsights(ctx context.Context, symbol, priceContext string) (string, error) {
	prompt := fmt.Sprintf(`Provide a brief market analysis for the cryptocurrency %s.

%s

Focus on:
- Recent price action and key technical indicators
- On-chain metrics if relevant
- Market sentiment and recent news
- Potential catalysts for price movement

Keep your response concise (max 150 words) and focus only on data-driven insights.
Format the response in a way that's easy to read with bullet points.

Note: This is for a portfolio management application focused on Monad Blockchain ecosystem tokens.`, symbol, priceContext)

	return c.generate(ctx, prompt)
}

// WhaleAnalysis explains the significance of a large transaction.
func (c *Client) WhaleAnalysis(ctx context.Context, tx WhaleContext) (string, error) {
	prompt := fmt.Sprintf(`You are a blockchain analyst specializing in whale transaction analysis for the Monad Blockchain ecosystem.
Analyze this whale transaction and provide insights:

Transaction Details:
- Type: %s (buy/sell/transfer)
- Token: %s (%s)
- Amount: %s tokens
- USD Value: %s
- From: %s
- To: %s
- Time: %s
- Hash: %s

Please provide a comprehensive analysis including:
1. Transaction overview and significance
2. Analysis of the sender and recipient wallets
3. Potential market impact of this transaction
4. Related on-chain activity and patterns
5. Recommendations for traders/investors

Format your response in Markdown with appropriate headings and bullet points.
Keep your analysis factual and evidence-based. Mention if certain conclusions are speculative.`,
		tx.Type, tx.Symbol, tx.Name, tx.Amount, tx.USDValue, tx.From, tx.To, tx.Age, tx.Hash)

	return c.generate(ctx, prompt)
}

type generateRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("advisor API key not configured")
	}

	payload, err := json.Marshal(generateRequest{
		Contents: []requestContent{{Parts: []requestPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("advisor request completed",
		zap.String("model", c.model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("advisor API key invalid or expired")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("advisor API error: %s", decoded.Error.Message)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("advisor returned no candidates")
	}

	var text strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}
