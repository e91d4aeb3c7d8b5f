package loader

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dkoval/ragbox/internal/models"
)

// LoadURL fetches a single page and extracts its text. On success it
// returns exactly one document. All failure modes are classified:
// timeout, connection failure and non-success status wrap
// ErrFetchFailed; a page with no usable text wraps ErrNoContentExtracted.
func (l *Loader) LoadURL(ctx context.Context, pageURL string) ([]models.Document, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", l.config.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d from %s", models.ErrFetchFailed, resp.StatusCode, pageURL)
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}

	content := extractMainContent(page)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrNoContentExtracted, pageURL)
	}

	return []models.Document{{
		Source:  pageURL,
		Content: content,
		Metadata: map[string]interface{}{
			"source":       pageURL,
			"title":        strings.TrimSpace(page.Find("title").Text()),
			"contentType":  resp.Header.Get("Content-Type"),
			"lastModified": resp.Header.Get("Last-Modified"),
			"fetchedAt":    time.Now().UTC().Format(time.RFC3339),
		},
	}}, nil
}

// extractMainContent prefers a recognizable content region and falls
// back to the whole body.
func extractMainContent(page *goquery.Document) string {
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := page.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	if content == "" {
		content = page.Find("body").Text()
	}

	return cleanContent(content)
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}
