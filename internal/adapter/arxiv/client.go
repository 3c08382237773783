package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"litwatch/internal/domain"
	"litwatch/internal/retry"

	"golang.org/x/time/rate"
)

// Client queries the arXiv export API. arXiv asks clients to stay under
// one request every three seconds, so all calls pass through a limiter.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient constructs an arXiv client. requestInterval throttles
// successive queries; zero disables throttling.
func NewClient(baseURL string, client *http.Client, requestInterval time.Duration, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if requestInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(requestInterval), 1)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Authors    []atomAuthor   `xml:"author"`
	Links      []atomLink     `xml:"link"`
	Categories []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// Search returns the most recently submitted articles matching keyword,
// newest first. Entries with missing optional fields are kept with those
// fields empty.
func (c *Client) Search(ctx context.Context, keyword string, maxResults int) ([]domain.Article, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	c.logger.Info("arxiv_search_started",
		slog.String("keyword", keyword),
		slog.Int("max_results", maxResults),
	)
	start := time.Now()

	params := url.Values{
		"search_query": {keyword},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	}
	reqURL := fmt.Sprintf("%s/api/query?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("arxiv_search_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, domain.NewCollectionError("arxiv.query", err, true)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("arxiv_search_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, domain.NewCollectionError("arxiv.query",
			fmt.Errorf("arxiv returned %d: %s", resp.StatusCode, string(body)),
			retry.RetryableHTTPStatus(resp.StatusCode))
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, domain.NewCollectionError("arxiv.decode", err, false)
	}

	articles := make([]domain.Article, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		articles = append(articles, entryToArticle(entry))
	}

	c.logger.Info("arxiv_search_completed",
		slog.String("keyword", keyword),
		slog.Int("article_count", len(articles)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return articles, nil
}

func entryToArticle(entry atomEntry) domain.Article {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, a.Name)
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		categories = append(categories, cat.Term)
	}

	var sourceURL, pdfURL string
	for _, link := range entry.Links {
		switch {
		case link.Title == "pdf":
			pdfURL = link.Href
		case link.Rel == "alternate":
			sourceURL = link.Href
		}
	}
	if sourceURL == "" {
		sourceURL = entry.ID
	}

	var publishedAt time.Time
	if entry.Published != "" {
		if parsed, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			publishedAt = parsed
		}
	}

	article := domain.Article{
		SourceID:    sourceIDFromEntryID(entry.ID),
		Title:       collapseWhitespace(entry.Title),
		Authors:     authors,
		Abstract:    strings.TrimSpace(entry.Summary),
		Categories:  categories,
		PublishedAt: publishedAt,
		SourceURL:   sourceURL,
		PDFURL:      pdfURL,
	}
	return article.Normalize()
}

// sourceIDFromEntryID strips the abs URL prefix from an Atom entry id.
// Old-style ids keep their slash: http://arxiv.org/abs/math/0211159v1
// becomes math/0211159v1.
func sourceIDFromEntryID(entryID string) string {
	if idx := strings.Index(entryID, "/abs/"); idx >= 0 {
		return entryID[idx+len("/abs/"):]
	}
	return entryID
}

// Atom titles arrive with embedded newlines and indentation.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ domain.LiteratureSource = (*Client)(nil)
