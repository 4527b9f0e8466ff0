package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// StockQuote fetches the latest quote for a symbol from Alpha Vantage.
type StockQuote struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewStockQuote creates the stock price tool.
func NewStockQuote(endpoint, apiKey string) *StockQuote {
	if endpoint == "" {
		endpoint = "https://www.alphavantage.co/query"
	}
	return &StockQuote{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the stable tool identifier.
func (s *StockQuote) Name() string {
	return "get_stock_price"
}

// Description returns the tool description shown to the model.
func (s *StockQuote) Description() string {
	return "Fetch the latest stock price for a given symbol (e.g. 'AAPL', 'TSLA')."
}

// Parameters returns the JSON schema for the tool arguments.
func (s *StockQuote) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"symbol": map[string]any{
				"type":        "string",
				"description": "The ticker symbol, e.g. 'AAPL'",
			},
		},
		"required": []string{"symbol"},
	}
}

type stockArgs struct {
	Symbol string `json:"symbol"`
}

// Invoke fetches the quote. Network, HTTP and parse failures all degrade to
// an error payload.
func (s *StockQuote) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var in stockArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return ErrorPayload(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", in.Symbol)
	params.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return ErrorPayload(fmt.Sprintf("API request failed: %v", err)), nil
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return ErrorPayload(fmt.Sprintf("API request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrorPayload(fmt.Sprintf("API request failed: unexpected status %d", resp.StatusCode)), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrorPayload(fmt.Sprintf("API request failed: %v", err)), nil
	}

	// Validate and compact the provider JSON before handing it back.
	var quote map[string]any
	if err := json.Unmarshal(body, &quote); err != nil {
		return ErrorPayload(fmt.Sprintf("Unexpected error: %v", err)), nil
	}

	out, err := json.Marshal(quote)
	if err != nil {
		return ErrorPayload(fmt.Sprintf("Unexpected error: %v", err)), nil
	}
	return string(out), nil
}
