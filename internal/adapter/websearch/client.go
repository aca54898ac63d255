// Package websearch implements the web search tool backend using the
// DuckDuckGo Instant Answer API.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/titanchat/titan/internal/config"
	"github.com/titanchat/titan/internal/resilience"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// instantAnswer mirrors the fields we use from the DuckDuckGo response.
type instantAnswer struct {
	Heading       string  `json:"Heading"`
	AbstractText  string  `json:"AbstractText"`
	AbstractURL   string  `json:"AbstractURL"`
	Answer        string  `json:"Answer"`
	RelatedTopics []topic `json:"RelatedTopics"`
}

type topic struct {
	Text     string  `json:"Text"`
	FirstURL string  `json:"FirstURL"`
	Topics   []topic `json:"Topics"`
}

// Client queries the DuckDuckGo Instant Answer API.
type Client struct {
	baseURL    string
	maxResults int
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a search client from configuration.
func NewClient(cfg config.Search) *Client {
	return &Client{
		baseURL:    cfg.URL,
		maxResults: cfg.MaxResults,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// SetBreaker installs a circuit breaker around search requests.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Search runs one query and returns up to maxResults hits.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: empty query")
	}

	var results []Result
	err := c.execute(func() error {
		var err error
		results, err = c.search(ctx, query)
		return err
	})
	return results, err
}

func (c *Client) search(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: unexpected status %d", resp.StatusCode)
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return c.collect(answer), nil
}

// collect flattens the instant answer into a bounded result list. The
// direct answer and abstract come first, then related topics.
func (c *Client) collect(answer instantAnswer) []Result {
	var results []Result

	if answer.Answer != "" {
		results = append(results, Result{Title: answer.Heading, Snippet: answer.Answer})
	}
	if answer.AbstractText != "" {
		results = append(results, Result{
			Title:   answer.Heading,
			Snippet: answer.AbstractText,
			URL:     answer.AbstractURL,
		})
	}

	var addTopics func(topics []topic)
	addTopics = func(topics []topic) {
		for _, t := range topics {
			if len(results) >= c.maxResults {
				return
			}
			if t.Text != "" {
				results = append(results, Result{Title: topicTitle(t.Text), Snippet: t.Text, URL: t.FirstURL})
			}
			addTopics(t.Topics)
		}
	}
	addTopics(answer.RelatedTopics)

	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}
	return results
}

// topicTitle takes the leading clause of a topic text as its title.
func topicTitle(text string) string {
	if i := strings.Index(text, " - "); i > 0 {
		return text[:i]
	}
	return text
}

// FormatResults renders search hits as numbered plain text for the model.
func FormatResults(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s", i+1, r.Title)
		if r.Snippet != "" && r.Snippet != r.Title {
			fmt.Fprintf(&sb, ": %s", r.Snippet)
		}
		if r.URL != "" {
			fmt.Fprintf(&sb, " (%s)", r.URL)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (c *Client) execute(fn func() error) error {
	if c.breaker != nil {
		return c.breaker.Execute(fn)
	}
	return fn()
}
