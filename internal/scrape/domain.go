package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"leadgen-engine/internal/pacer"
	"leadgen-engine/internal/scrape/util"
)

var domainBlocklist = []string{
	"linkedin.com",
	"indeed.com",
	"glassdoor.com",
	"ziprecruiter.com",
	"monster.com",
	"careerbuilder.com",
	"simplyhired.com",
	"builtin.com",
	"levels.fyi",
	"crunchbase.com",
	"wikipedia.org",
	"zoominfo.com",
	"apollo.io",

	// ATS / job boards
	"greenhouse.io",
	"boards.greenhouse.io",
	"lever.co",
	"myworkdayjobs.com",
	"workday.com",
	"smartrecruiters.com",
	"icims.com",
	"jobvite.com",
	"applytojob.com",
}

func (c *Client) GetOrFindCompanyDomain(ctx context.Context, company string) (string, error) {
	if strings.TrimSpace(company) == "" {
		return "", nil
	}

	// 1) cached?
	if c.domains != nil {
		d, err := c.domains.GetCompanyDomain(ctx, company)
		if err != nil {
			c.log.Warn("domain cache read failed", "company", company, "err", err)
		} else if d != "" {
			return d, nil
		}
	}

	// 2) search
	found, err := c.FindCompanyDomainDDG(ctx, company)
	if err != nil {
		return "", err
	}
	if found == "" || isBlockedDomain(found) {
		return "", nil
	}

	// 3) store
	if c.domains != nil {
		if err := c.domains.PutCompanyDomain(ctx, company, found); err != nil {
			return found, fmt.Errorf("cache domain for %q: %w", company, err)
		}
	}
	return found, nil
}

func (c *Client) FindCompanyDomainDDG(ctx context.Context, company string) (string, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return "", nil
	}
	if err := c.pacer.Wait(ctx, pacer.ServiceSearch); err != nil {
		return "", err
	}

	// Make query less noisy
	q := sanitizeCompanyForSearch(company)
	query := fmt.Sprintf("%s official website", q)

	u := c.ddgURL + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("domain search %q: %w", company, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("domain search %q: status %s", company, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("domain search %q: %w", company, err)
	}

	var best string

	// DDG HTML results: <a class="result__a" href="...">
	doc.Find("a.result__a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}

		host := util.NormalizeDomain(decodeDDGRedirect(href))
		if host == "" || isBlockedDomain(host) {
			return true
		}

		best = host
		return false // stop at first good domain
	})

	return best, nil
}

func decodeDDGRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	// DDG sometimes uses /l/?uddg=<urlencoded>
	if uddg := u.Query().Get("uddg"); uddg != "" {
		return uddg
	}
	return href
}

func isBlockedDomain(host string) bool {
	for _, b := range domainBlocklist {
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}

func sanitizeCompanyForSearch(s string) string {
	s = strings.TrimSpace(s)
	// remove common suffixes that confuse search
	repls := []string{
		", Inc.", "", " Inc.", "", " Inc", "",
		", LLC", "", " LLC", "",
		", Ltd.", "", " Ltd.", "", " Ltd", "",
		" Recruiting", "",
		" Staffing", "",
	}
	r := strings.NewReplacer(repls...)
	s = r.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
