package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxSearchResults = 5

// Search queries the DuckDuckGo HTML endpoint and extracts result snippets.
type Search struct {
	endpoint string
	client   *http.Client
}

// NewSearch creates the web search tool. endpoint defaults to the public
// DuckDuckGo HTML frontend when empty.
func NewSearch(endpoint string) *Search {
	if endpoint == "" {
		endpoint = "https://html.duckduckgo.com/html"
	}
	return &Search{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the stable tool identifier.
func (s *Search) Name() string {
	return "search"
}

// Description returns the tool description shown to the model.
func (s *Search) Description() string {
	return "Search the web for current information. Use this when you need to find recent information or answer questions about current events."
}

// Parameters returns the JSON schema for the tool arguments.
func (s *Search) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
		},
		"required": []string{"query"},
	}
}

type searchArgs struct {
	Query string `json:"query"`
}

// Invoke runs the search. Failures degrade to an in-band error string so
// the model can report them; the call itself never fails.
func (s *Search) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var in searchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("Search failed: invalid arguments: %v", err), nil
	}

	results, err := s.run(ctx, in.Query)
	if err != nil {
		return fmt.Sprintf("Search failed: %v", err), nil
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q", in.Query), nil
	}
	return strings.Join(results, "\n\n"), nil
}

func (s *Search) run(ctx context.Context, query string) ([]string, error) {
	u := fmt.Sprintf("%s/?q=%s&kl=us-en", s.endpoint, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; parley/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var results []string
	doc.Find(".result__snippet").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			results = append(results, text)
		}
		return len(results) < maxSearchResults
	})

	return results, nil
}
