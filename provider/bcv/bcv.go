// Package bcv scrapes the official USD/VES and EUR/VES reference rates
// from the Banco Central de Venezuela website.
package bcv

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vesfx/vesrates/provider"
	"github.com/vesfx/vesrates/rates"
	"github.com/vesfx/vesrates/storage/types"
)

// ExchangeCode is the storage key for the BCV official rate
const ExchangeCode = "bcv"

// Scraper is the BCV website scraper
type Scraper struct {
	client *http.Client
	url    string
	retry  provider.RetryPolicy
}

// NewScraper creates a new instance of the BCV website scraper
func NewScraper(url string, timeout time.Duration, retry provider.RetryPolicy) *Scraper {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // The BCV cert chain is broken
	}

	return &Scraper{
		client: &http.Client{
			Timeout:   timeout,
			Transport: tr,
		},
		url:   url,
		retry: retry,
	}
}

func (s *Scraper) Name() string {
	return "BCV"
}

func (s *Scraper) Interval() time.Duration {
	return time.Hour // the official rate is published once per banking day
}

// Fetch scrapes the BCV page and returns the normalized USD/VES and
// EUR/VES records. The official rate is a single published number, so
// buy == sell == avg on every record
func (s *Scraper) Fetch(ctx context.Context) ([]*types.RateRecord, error) {
	body, err := s.fetchPage(ctx)
	if err != nil {
		return nil, err
	}

	// Construct document for parsing
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to construct query doc: %w: %w", provider.ErrParse, err)
	}

	var (
		fetchTime = time.Now().UTC()
		sections  = []struct {
			id   string
			pair string
		}{
			{"dolar", "USD/VES"},
			{"euro", "EUR/VES"},
		}

		records = make([]*types.RateRecord, 0, len(sections))

		effectiveDate = fetchTime
	)

	// Fetch as-of date
	if parsed := parseEffectiveDate(doc); parsed != nil {
		effectiveDate = *parsed
	}

	for _, section := range sections {
		rate, err := scrapeSectionRate(doc, section.id)
		if err != nil {
			return nil, err
		}

		record, err := rates.Normalize(
			rates.RawRate{
				BuyPrice:   rate,
				SellPrice:  rate,
				Source:     ExchangeCode,
				ObservedAt: effectiveDate,
			},
			ExchangeCode,
			section.pair,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", provider.ErrParse, err)
		}

		records = append(records, record)
	}

	return records, nil
}

// fetchPage GETs the BCV page body within the transport retry budget.
// Client-side HTTP errors (4xx) are not retried
func (s *Scraper) fetchPage(ctx context.Context) ([]byte, error) {
	var body []byte

	err := s.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
		if err != nil {
			return provider.Permanent(
				fmt.Errorf("unable to create new GET request: %w: %w", provider.ErrTransport, err),
			)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("unable to execute GET request: %w: %w", provider.ErrTransport, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err = fmt.Errorf(
				"invalid status code received: %w: %d",
				provider.ErrTransport, resp.StatusCode,
			)

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return provider.Permanent(err)
			}

			return err
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("unable to read response body: %w: %w", provider.ErrTransport, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// scrapeSectionRate extracts the published rate from a currency section
// of the BCV page. A missing section or an unparseable value is a parse
// failure, never a zero rate
func scrapeSectionRate(doc *goquery.Document, currencyID string) (float64, error) {
	sel := doc.Find("#" + currencyID)

	if sel.Length() == 0 {
		return 0, fmt.Errorf("missing element #%s: %w", currencyID, provider.ErrParse)
	}

	txt := sel.Find(".col-sm-6.col-xs-6.centrado").First().Text()
	if strings.TrimSpace(txt) == "" {
		txt = sel.Find(".centrado").First().Text()
	}

	v, err := parseBCVNumber(strings.TrimSpace(txt))
	if err != nil {
		return 0, fmt.Errorf("unable to parse rate value for %s: %w: %w", currencyID, provider.ErrParse, err)
	}

	return rates.Round4(v), nil
}

// parseBCVNumber parses the rate number from the BCV website
func parseBCVNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty rate value")
	}

	// BCV typically uses comma as decimal separator and no thousands:
	// "1.234,56" -> "1234.56"
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse rate %q: %w", s, err)
	}

	return f, nil
}

// parseEffectiveDate parses the "Fecha Valor" date on the BCV website
func parseEffectiveDate(doc *goquery.Document) *time.Time {
	// Best source: the machine-readable datetime
	sel := doc.Find(`span.date-display-single[property="dc:date"]`).First()
	if sel.Length() == 0 {
		sel = doc.Find("span.date-display-single").First()
	}

	if sel.Length() == 0 {
		return nil
	}

	if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
		// Example: "2026-01-13T00:00:00-04:00"
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(content)); err == nil {
			u := t.UTC()

			return &u
		}
	}

	// Fallback: parse the rendered Spanish text
	txt := strings.TrimSpace(sel.Text())
	if txt == "" {
		return nil
	}

	t, err := parseBCVDate(txt)
	if err != nil {
		return nil
	}

	u := t.UTC()

	return &u
}

// parseBCVDate parses the date on the BCV website (effective date)
func parseBCVDate(s string) (time.Time, error) {
	// Example: "Martes, 13 Enero 2026"
	// We ignore day-of-week if present.
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ","); i != -1 {
		s = strings.TrimSpace(s[i+1:])
	}

	parts := strings.Fields(s)
	if len(parts) < 3 {
		return time.Time{}, fmt.Errorf("date format is invalid %q", s)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, err
	}

	month := strings.ToLower(parts[1])

	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse effective date year: %w", err)
	}

	months := map[string]time.Month{
		"enero":      time.January,
		"febrero":    time.February,
		"marzo":      time.March,
		"abril":      time.April,
		"mayo":       time.May,
		"junio":      time.June,
		"julio":      time.July,
		"agosto":     time.August,
		"septiembre": time.September,
		"setiembre":  time.September,
		"octubre":    time.October,
		"noviembre":  time.November,
		"diciembre":  time.December,
	}

	mo, ok := months[month]
	if !ok {
		return time.Time{}, fmt.Errorf("month is invalid %q", month)
	}

	return time.Date(year, mo, day, 0, 0, 0, 0, time.UTC), nil
}
