package enrich

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsDigest/internal/ports"
)

// maxTextRunes caps extracted page text; the dedup feature text only uses
// the first 600 runes anyway.
const maxTextRunes = 2000

// PageExtractor pulls paragraph text from a story's web page, giving
// body-less feed records some content signal for embedding.
type PageExtractor struct {
	client *http.Client
}

var _ ports.PageEnricher = (*PageExtractor)(nil)

// NewPageExtractor wires an HTTP client; the default has a 20s timeout.
func NewPageExtractor(client *http.Client) *PageExtractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PageExtractor{client: client}
}

// ExtractText fetches the page and concatenates its paragraph text.
func (p *PageExtractor) ExtractText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsDigest/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	var parts []string
	doc.Find("article p, main p, p").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
		return len(strings.Join(parts, " ")) < maxTextRunes*4
	})

	text := strings.Join(parts, " ")
	if runes := []rune(text); len(runes) > maxTextRunes {
		text = string(runes[:maxTextRunes])
	}
	return text, nil
}
