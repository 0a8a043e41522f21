package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// SearchResult represents a single search result.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func (g *HTTPGateway) Search(ctx context.Context, query string) (string, error) {
	results, err := g.searchDuckDuckGo(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return "No results found. Try different keywords.", nil
	}
	return FormatSearchResults(results), nil
}

// FormatSearchResults renders results as a numbered listing the agents can
// quote URLs from.
func FormatSearchResults(results []SearchResult) string {
	entries := make([]string, len(results))
	for i, r := range results {
		entries[i] = fmt.Sprintf("Result [%d]\nTitle: %s\nURL: %s\nSnippet: %s\n", i, r.Title, r.URL, r.Snippet)
	}
	return strings.Join(entries, "\n---\n")
}

// searchDuckDuckGo performs a search using DuckDuckGo's HTML interface, which
// needs no API key.
func (g *HTTPGateway) searchDuckDuckGo(ctx context.Context, query string) ([]SearchResult, error) {
	searchURL := fmt.Sprintf("https://html.duckduckgo.com/html/?q=%s", url.QueryEscape(query))
	if g.config.TimeWindow != "" {
		searchURL += "&df=" + url.QueryEscape(g.config.TimeWindow)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", g.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return parseDuckDuckGoResults(string(body), g.config.MaxSearchResults)
}

// parseDuckDuckGoResults extracts search results from DuckDuckGo HTML.
func parseDuckDuckGoResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []SearchResult

	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(attr.Val, "result") && strings.Contains(attr.Val, "results_links") {
					result := extractResult(n)
					if result.URL != "" && result.Title != "" {
						results = append(results, result)
					}
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findResults(c)
		}
	}

	findResults(doc)
	return results, nil
}

// extractResult extracts a single search result from a result div.
func extractResult(n *html.Node) SearchResult {
	var result SearchResult

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "class" {
					if strings.Contains(attr.Val, "result__a") {
						result.URL = attrValue(n, "href")
						result.Title = textContent(n)
					} else if strings.Contains(attr.Val, "result__snippet") {
						result.Snippet = textContent(n)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)

	// Unwrap DuckDuckGo redirect links.
	if strings.HasPrefix(result.URL, "//duckduckgo.com/l/?uddg=") {
		if decoded, err := url.QueryUnescape(strings.TrimPrefix(result.URL, "//duckduckgo.com/l/?uddg=")); err == nil {
			if idx := strings.Index(decoded, "&"); idx > 0 {
				decoded = decoded[:idx]
			}
			result.URL = decoded
		}
	}

	return result
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
