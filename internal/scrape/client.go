// Package scrape reads job postings, company about pages and search results
// from already-rendered HTML. It implements the posting, domain and search
// collaborators the pipeline consumes.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/pacer"
)

const (
	DefaultBaseURL = "https://www.linkedin.com"
	defaultDDGURL  = "https://duckduckgo.com/html/"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageBytes   = 8 << 20
)

// DomainCache remembers company domains found by web search.
type DomainCache interface {
	GetCompanyDomain(ctx context.Context, company string) (string, error)
	PutCompanyDomain(ctx context.Context, company, domain string) error
}

type Config struct {
	BaseURL string
	// Cookie is the site session cookie value (li_at). Pages are fetched
	// anonymously when empty.
	Cookie  string
	Timeout time.Duration
	// DDGURL overrides the web search endpoint used for the domain fallback.
	DDGURL string
}

type Client struct {
	base    string
	cookie  string
	ddgURL  string
	http    *http.Client
	pacer   *pacer.Pacer
	domains DomainCache
	log     *slog.Logger
}

var (
	_ domain.PostingScraper = (*Client)(nil)
	_ domain.DomainResolver = (*Client)(nil)
	_ domain.JobSearcher    = (*Client)(nil)
)

// NewClient builds a scraper. cache may be nil.
func NewClient(cfg Config, p *pacer.Pacer, cache DomainCache, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ddg := cfg.DDGURL
	if ddg == "" {
		ddg = defaultDDGURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		base:    base,
		cookie:  strings.TrimSpace(cfg.Cookie),
		ddgURL:  ddg,
		http:    &http.Client{Timeout: timeout},
		pacer:   p,
		domains: cache,
		log:     log,
	}
}

// fetch GETs a site page and parses it. 404 is ErrNotFound; 429 and 5xx
// are transient.
func (c *Client) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := c.pacer.Wait(ctx, pacer.ServiceSite); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "li_at", Value: c.cookie})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("get %s: %w", rawURL, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("get %s: %w", rawURL, domain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, domain.Transient(fmt.Errorf("get %s: status %s", rawURL, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("get %s: status %s", rawURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}
