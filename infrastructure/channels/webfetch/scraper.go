// Package webfetch retrieves web pages and extracts their readable text.
// Fetches run behind a circuit breaker so a misbehaving site cannot stall
// every ingestion run.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"analyst-backend/application/ports"
	pkgerrors "analyst-backend/pkg/errors"
)

const maxBodyBytes = 2 << 20

// Scraper fetches pages over HTTP and strips them to text.
type Scraper struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    ports.MetricsRecorder
	logger     *zap.Logger
}

// NewScraper creates a web scraper
func NewScraper(metrics ports.MetricsRecorder, logger *zap.Logger) *Scraper {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webfetch",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Scraper{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		breaker:    breaker,
		metrics:    metrics,
		logger:     logger,
	}
}

// Scrape fetches the URL and returns its extracted text
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (*ports.Page, error) {
	start := time.Now()
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx, pageURL)
	})
	if err != nil {
		s.metrics.RecordChannelCall("webfetch", "failure", time.Since(start).Seconds())
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, pkgerrors.NewExternal("web fetching is temporarily suspended")
		}
		return nil, err
	}

	s.metrics.RecordChannelCall("webfetch", "success", time.Since(start).Seconds())
	return result.(*ports.Page), nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*ports.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, pkgerrors.NewValidation("invalid url: " + pageURL)
	}
	req.Header.Set("User-Agent", "analyst-backend/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.NewExternal("fetching page: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, pkgerrors.NewExternal(fmt.Sprintf(
			"page fetch returned %d for %s", resp.StatusCode, pageURL))
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, pkgerrors.NewExternal("parsing page html: " + err.Error())
	}

	title, text := extract(doc)
	return &ports.Page{
		URL:   pageURL,
		Title: title,
		Text:  text,
	}, nil
}

// extract walks the DOM collecting visible text, skipping script and style
func extract(doc *html.Node) (string, string) {
	var title string
	var sb strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString(" ")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return title, strings.TrimSpace(sb.String())
}
