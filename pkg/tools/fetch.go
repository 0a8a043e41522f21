package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const batchSeparator = "\n\n=== ARTICLE BREAK ===\n\n"

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

func (g *HTTPGateway) Fetch(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", g.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/plain") || strings.Contains(contentType, "text/markdown") {
		return g.truncate(string(body)), nil
	}

	text, err := extractReadableText(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no readable content at %s", pageURL)
	}
	return g.truncate(text), nil
}

// BatchFetch downloads pages concurrently under a shared deadline. A failed
// URL contributes an inline error note so the surviving pages still reach the
// caller; blowing the batch deadline fails the whole batch instead of
// returning whichever pages happened to finish first.
func (g *HTTPGateway) BatchFetch(ctx context.Context, urls []string) (string, error) {
	if len(urls) == 0 {
		return "", fmt.Errorf("no urls to fetch")
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.BatchTimeout)
	defer cancel()

	sem := semaphore.NewWeighted(int64(g.config.BatchConcurrency))
	eg, egCtx := errgroup.WithContext(ctx)

	results := make([]string, len(urls))
	for i, pageURL := range urls {
		eg.Go(func() error {
			if err := sem.Acquire(egCtx, 1); err != nil {
				results[i] = fmt.Sprintf("Error: fetch of %s cancelled: %v", pageURL, err)
				return nil
			}
			defer sem.Release(1)

			content, err := g.Fetch(egCtx, pageURL)
			if err != nil {
				results[i] = fmt.Sprintf("Error: failed to fetch %s: %v", pageURL, err)
				return nil
			}
			results[i] = content
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("batch fetch timed out after %s", g.config.BatchTimeout)
	}

	return strings.Join(results, batchSeparator), nil
}

func (g *HTTPGateway) truncate(text string) string {
	if len(text) > g.config.MaxContentLength {
		return text[:g.config.MaxContentLength] + "\n\n[...truncated...]"
	}
	return text
}

// extractReadableText strips an HTML document down to its visible prose,
// skipping chrome elements like navigation and footers.
func extractReadableText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(*html.Node, int)
	walk = func(n *html.Node, depth int) {
		if depth > 50 {
			return
		}
		switch n.Type {
		case html.TextNode:
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header", "aside":
				return
			case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "br", "article", "section":
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				sb.WriteString("\n")
			}
		}
	}
	walk(doc, 0)

	result := sb.String()
	result = multiSpacePattern.ReplaceAllString(result, " ")
	result = multiNewlinePattern.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result), nil
}
