package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/util"
)

// SearchPageSize is the number of cards per search results page.
const SearchPageSize = 25

var reJobURN = regexp.MustCompile(`(?:jobPosting:|/jobs/view/)(\d+)`)

// ScrapePosting fetches and parses a job posting. Missing fields are returned
// empty together with a wrapped domain.ErrExtractionIncomplete.
func (c *Client) ScrapePosting(ctx context.Context, jobID int64) (domain.Posting, error) {
	doc, err := c.fetch(ctx, fmt.Sprintf("%s/jobs/view/%d/", c.base, jobID))
	if err != nil {
		return domain.Posting{JobID: jobID}, err
	}
	p := ParsePosting(doc)
	p.JobID = jobID

	if missing := p.Missing(); len(missing) > 0 {
		return p, fmt.Errorf("job %d missing %s: %w", jobID, strings.Join(missing, ","), domain.ErrExtractionIncomplete)
	}
	return p, nil
}

// ParsePosting extracts posting fields from a job detail page.
func ParsePosting(doc *goquery.Document) domain.Posting {
	var p domain.Posting

	p.Title = firstText(doc,
		".job-details-jobs-unified-top-card__job-title",
		".top-card-layout__title",
		"h1",
	)

	// the logo anchor comes first and has no text
	doc.Find("a[href^='https://www.linkedin.com/company/'], a[href^='/company/']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if p.CompanyProfileURL == "" {
			href, _ := a.Attr("href")
			if strings.HasPrefix(href, "/") {
				href = "https://www.linkedin.com" + href
			}
			p.CompanyProfileURL = util.NormalizeProfileURL(href)
		}
		p.CompanyName = util.CleanText(a.Text())
		return p.CompanyName == ""
	})

	meta := doc.Find(".job-details-jobs-unified-top-card__primary-description-container").First().Find("div").First()
	if meta.Length() > 0 {
		p.CompanyLocation, p.PostedAt, p.ApplicantCount = splitTopCard(meta.Text())
		p.CompanyLocation = util.NormalizeLocation(p.CompanyLocation)
	}

	hirer := doc.Find(".hirer-card__hirer-information a").First()
	if hirer.Length() > 0 {
		label, _ := hirer.Attr("aria-label")
		if label == "" {
			label = hirer.Text()
		}
		p.RecruiterName = ExtractName(label)
		href, _ := hirer.Attr("href")
		p.RecruiterURL = util.NormalizeProfileURL(href)
	}

	p.Details = strings.TrimSpace(doc.Find("#job-details").First().Text())
	return p
}

// splitTopCard splits "Austin, TX · 2 days ago · 57 applicants".
func splitTopCard(s string) (location, posted, applicants string) {
	s = strings.ReplaceAll(s, "Â·", "·")
	parts := strings.Split(s, "·")
	get := func(i int) string {
		if i < len(parts) {
			return util.CleanText(parts[i])
		}
		return ""
	}
	return get(0), get(1), get(2)
}

var nameSuffixes = []string{"'s verified profile", "' verified profile", "'s profile", "' profile"}

// ExtractName turns an accessibility label such as "View Jane Doe's
// verified profile" into "Jane Doe".
func ExtractName(label string) string {
	name := util.CleanText(strings.Replace(label, "View ", "", 1))
	name = strings.ReplaceAll(name, "’", "'")
	for _, suf := range nameSuffixes {
		if strings.HasSuffix(name, suf) {
			name = strings.TrimSuffix(name, suf)
			break
		}
	}
	return strings.TrimSpace(name)
}

// ResolveCompany reads the company's about page for its website and the
// dt/dd attribute list. When the page carries no website, the domain is
// looked up by name through web search. A failed page fetch still tries the
// search fallback and is reported only when nothing was found.
func (c *Client) ResolveCompany(ctx context.Context, profileURL, name string) (domain.CompanyProfile, error) {
	out := domain.CompanyProfile{Metadata: map[string]string{}}

	canon := util.NormalizeProfileURL(profileURL)
	var fetchErr error
	if canon != "" {
		doc, err := c.fetch(ctx, c.onSite(canon)+"/about/")
		if err == nil {
			out = ParseAbout(doc)
		} else {
			fetchErr = err
			c.log.Warn("company about page unavailable", "url", canon, "err", err)
		}
	}

	if out.Domain != "" {
		if c.domains != nil {
			if err := c.domains.PutCompanyDomain(ctx, name, out.Domain); err != nil {
				c.log.Warn("domain cache write failed", "company", name, "err", err)
			}
		}
		return out, nil
	}

	found, err := c.GetOrFindCompanyDomain(ctx, name)
	if err != nil {
		c.log.Warn("domain search failed", "company", name, "err", err)
	}
	out.Domain = found
	if out.Domain == "" && fetchErr != nil {
		return out, fetchErr
	}
	return out, nil
}

// ParseAbout extracts the website domain and attribute pairs from a company
// about page.
func ParseAbout(doc *goquery.Document) domain.CompanyProfile {
	out := domain.CompanyProfile{Metadata: map[string]string{}}

	doc.Find("a[target='_blank'].link-without-visited-state").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		target := decodeRedirect(href)
		if target == "" || util.IsLinkedInHost(target) {
			return true
		}
		out.Domain = util.NormalizeDomain(target)
		return out.Domain == ""
	})

	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		k := util.CleanText(dt.Text())
		v := util.CleanText(dt.NextFilteredUntil("dd", "dt").First().Text())
		if k != "" && v != "" {
			out.Metadata[k] = v
		}
	})
	return out
}

// decodeRedirect unwraps the site's outbound redirector (/redir/redirect?url=).
func decodeRedirect(href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.Contains(u.Path, "redirect") {
		if t := u.Query().Get("url"); t != "" {
			return t
		}
	}
	return href
}

// SearchJobIDs pages through a search results URL, SearchPageSize cards at a
// time, until max ids are collected or a page adds nothing new.
func (c *Client) SearchJobIDs(ctx context.Context, searchURL string, max int) ([]int64, error) {
	if max <= 0 {
		return nil, nil
	}
	seen := map[int64]bool{}
	var ids []int64

	for start := 0; len(ids) < max; start += SearchPageSize {
		pageURL, err := withStart(searchURL, start)
		if err != nil {
			return ids, err
		}
		doc, err := c.fetch(ctx, pageURL)
		if err != nil {
			if len(ids) > 0 && !errors.Is(err, context.Canceled) {
				c.log.Warn("search paging stopped", "url", pageURL, "err", err)
				return ids, nil
			}
			return ids, err
		}

		added := 0
		for _, id := range ParseSearch(doc) {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			added++
			if len(ids) >= max {
				break
			}
		}
		c.log.Debug("search page", "start", start, "added", added)
		if added == 0 {
			break
		}
	}
	return ids, nil
}

// ParseSearch lists posting ids on a search results page in page order.
func ParseSearch(doc *goquery.Document) []int64 {
	var out []int64
	seen := map[int64]bool{}
	add := func(raw string) {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	doc.Find("[data-job-id], [data-entity-urn]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("data-job-id"); ok {
			add(v)
			return
		}
		urn, _ := s.Attr("data-entity-urn")
		if m := reJobURN.FindStringSubmatch(urn); len(m) == 2 {
			add(m[1])
		}
	})
	return out
}

func withStart(searchURL string, start int) (string, error) {
	u, err := url.Parse(strings.TrimSpace(searchURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid search url %q", searchURL)
	}
	q := u.Query()
	q.Set("start", strconv.Itoa(start))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// onSite rewrites a canonical profile URL onto the configured base URL.
func (c *Client) onSite(canon string) string {
	u, err := url.Parse(canon)
	if err != nil || !util.IsLinkedInHost(canon) {
		return canon
	}
	return c.base + u.Path
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := util.CleanText(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}
