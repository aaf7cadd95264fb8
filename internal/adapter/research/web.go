package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/researcher/internal/adapter/llm"
	"github.com/xiaot623/gogo/researcher/internal/domain"
)

const (
	maxPageBytes    = 2 << 20
	maxPageTextRune = 6000
	userAgent       = "researchd/1.0 (Web Content Fetcher)"

	// DefaultFetchTimeout bounds a single page fetch.
	DefaultFetchTimeout = 15 * time.Second
)

// WebExtractor fetches open-web pages, converts them to text and summarizes them.
type WebExtractor struct {
	*LLMExtractor
	httpClient *http.Client
	logger     *zap.Logger
}

var _ domain.Extractor = (*WebExtractor)(nil)

func NewWebExtractor(client llm.LLMClient, model string, timeout time.Duration, logger *zap.Logger) *WebExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &WebExtractor{
		LLMExtractor: NewLLMExtractor(client, model, domain.AgentWeb),
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// Extract fetches every url and summarizes the pages that could be read.
// It fails only when no page could be fetched.
func (w *WebExtractor) Extract(ctx context.Context, query string, urls []string) (string, error) {
	if len(urls) == 0 {
		return "", errors.New("no web sources to fetch")
	}
	var pages strings.Builder
	var fetchErrs []error
	for _, u := range urls {
		text, err := w.fetchText(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			w.logger.Warn("web fetch failed", zap.String("url", u), zap.Error(err))
			fetchErrs = append(fetchErrs, err)
			continue
		}
		fmt.Fprintf(&pages, "## %s\n%s\n\n", u, text)
	}
	if pages.Len() == 0 {
		return "", fmt.Errorf("failed to fetch web sources: %w", errors.Join(fetchErrs...))
	}
	return w.summarize(ctx, query, urls, pages.String())
}

func (w *WebExtractor) fetchText(ctx context.Context, urlStr string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	text, err := HTMLToText(string(body))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("no readable content")
	}
	return text, nil
}

// HTMLToText converts HTML to markdown-like plain text, dropping page chrome.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, nav, footer, header, aside, iframe, form").Remove()

	var content strings.Builder

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		content.WriteString("# " + title + "\n\n")
	}

	doc.Find("h1, h2, h3, p, li, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		switch tag := goquery.NodeName(s); tag {
		case "h1", "h2", "h3":
			content.WriteString(strings.Repeat("#", int(tag[1]-'0')+1) + " " + text + "\n\n")
		case "li":
			content.WriteString("- " + text + "\n")
		default:
			if len(text) > 30 {
				content.WriteString(text + "\n\n")
			}
		}
	})

	out := strings.TrimSpace(content.String())
	if r := []rune(out); len(r) > maxPageTextRune {
		out = string(r[:maxPageTextRune]) + "..."
	}
	return out, nil
}
