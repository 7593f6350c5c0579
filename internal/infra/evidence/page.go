package evidence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

var (
	whitespace    = regexp.MustCompile(`\s+`)
	paymentFields = regexp.MustCompile(`(?i)cc-?num|card.?number|cardnumber|cvv|cvc|cc-exp|expiry|exp-?date|cc-csc`)
	obfuscatedJS  = regexp.MustCompile(`(?i)eval\(|atob\(|unescape\(|fromCharCode`)
)

// fetchHTML downloads a page and runs page analysis. https falls back to http.
func (c *Collector) fetchHTML(ctx context.Context, pageURL string, b *brands.Brand) (*threats.HTMLSnapshot, error) {
	snap, err := c.getPage(ctx, pageURL, b)
	if err != nil && strings.HasPrefix(pageURL, "https://") && ctx.Err() == nil {
		return c.getPage(ctx, "http://"+strings.TrimPrefix(pageURL, "https://"), b)
	}
	return snap, err
}

func (c *Collector) getPage(ctx context.Context, pageURL string, b *brands.Brand) (*threats.HTMLSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HTMLTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	final := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	text := truncate(whitespace.ReplaceAllString(strings.TrimSpace(doc.Find("body").Text()), " "), c.cfg.MaxTextChars)
	return &threats.HTMLSnapshot{
		URL:        final,
		StatusCode: resp.StatusCode,
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		Text:       text,
		Page:       AnalyzePage(doc, final, b),
		FetchedAt:  c.now(),
	}, nil
}

// AnalyzePage extracts login/payment forms, brand mentions and suspicious markup.
func AnalyzePage(doc *goquery.Document, pageURL string, b *brands.Brand) threats.PageAnalysis {
	var pa threats.PageAnalysis

	doc.Find("input, select").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t, _ := s.Attr("type"); strings.EqualFold(t, "password") {
			pa.HasLoginForm = true
		}
		for _, attr := range []string{"name", "id", "autocomplete", "placeholder"} {
			if v, ok := s.Attr(attr); ok && paymentFields.MatchString(v) {
				pa.HasPaymentForm = true
			}
		}
		return !(pa.HasLoginForm && pa.HasPaymentForm)
	})

	if b != nil {
		body := strings.ToLower(doc.Text())
		seen := map[string]bool{}
		for _, term := range []string{strings.ToLower(b.Name), b.BaseName()} {
			if len(term) < 3 || seen[term] {
				continue
			}
			seen[term] = true
			if n := strings.Count(body, term); n > pa.BrandMentions {
				pa.BrandMentions = n
			}
		}
	}

	pageHost := hostOf(pageURL)
	add := func(el string) {
		for _, e := range pa.SuspiciousElements {
			if e == el {
				return
			}
		}
		pa.SuspiciousElements = append(pa.SuspiciousElements, el)
	}
	doc.Find("form[action]").Each(func(_ int, s *goquery.Selection) {
		action, _ := s.Attr("action")
		u, err := url.Parse(action)
		if err != nil {
			return
		}
		if u.Scheme == "data" || u.Scheme == "javascript" {
			add("scripted_form_action")
		} else if u.Host != "" && !strings.EqualFold(u.Hostname(), pageHost) {
			add("external_form_action")
		}
	})
	doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		w, _ := s.Attr("width")
		h, _ := s.Attr("height")
		if strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none") || w == "0" || h == "0" {
			add("hidden_iframe")
		}
	})
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if obfuscatedJS.MatchString(s.Text()) {
			add("obfuscated_script")
		}
	})
	doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		if v, _ := s.Attr("http-equiv"); strings.EqualFold(v, "refresh") {
			add("meta_refresh")
		}
	})
	if pa.HasLoginForm && !strings.HasPrefix(pageURL, "https://") {
		add("password_over_http")
	}
	return pa
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
