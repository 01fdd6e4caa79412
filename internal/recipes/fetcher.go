package recipes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxPageChars = 50000

// Fetcher retrieves a page and reduces it to clean article text. A plain
// HTTP fetch is tried first; when that yields no usable article the page is
// rendered headlessly, which handles script-heavy recipe sites.
type Fetcher struct {
	UserAgent      string
	Client         *http.Client
	RenderFallback bool
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		Client:         &http.Client{Timeout: 30 * time.Second},
		RenderFallback: true,
	}
}

// Fetch returns sanitized article text for a URL.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %v", err)
	}

	text, err := f.fetchPlain(ctx, pageURL, parsedURL)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if !f.RenderFallback {
		if err == nil {
			err = fmt.Errorf("page yielded no readable content")
		}
		return "", err
	}

	return f.fetchRendered(ctx, pageURL, parsedURL)
}

func (f *Fetcher) fetchPlain(ctx context.Context, pageURL string, parsedURL *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse article: %v", err)
	}

	return sanitizeArticle(article.Title, article.TextContent), nil
}

// fetchRendered loads the page in a headless browser and runs readability on
// the rendered DOM.
func (f *Fetcher) fetchRendered(ctx context.Context, pageURL string, parsedURL *url.URL) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	renderCtx, cancel := context.WithTimeout(browserCtx, 60*time.Second)
	defer cancel()

	var html string
	err := chromedp.Run(renderCtx,
		chromedp.Navigate(pageURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render page: %v", err)
	}

	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse rendered article: %v", err)
	}

	text := sanitizeArticle(article.Title, article.TextContent)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("rendered page yielded no readable content")
	}
	return text, nil
}

func sanitizeArticle(title, content string) string {
	p := bluemonday.StrictPolicy()
	sanitized := p.Sanitize(content)

	if len(sanitized) > maxPageChars {
		sanitized = sanitized[:maxPageChars] + "\n... (content truncated) ..."
	}

	if title != "" {
		return fmt.Sprintf("TITLE: %s\n\n%s", title, sanitized)
	}
	return sanitized
}
