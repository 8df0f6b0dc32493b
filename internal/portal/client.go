// Package portal talks to the university LMS portal. The portal has no API;
// login and data pages are scraped from server-rendered HTML, which the
// portal still serves in windows-1251 on some pages.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corpix/uarand"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/studsched/studsched-bot/internal/config"
	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/ratelimit"
)

// Mark is one parsed grade row.
type Mark struct {
	Subject string
	Control string // assessment type (экзамен, зачет, ...)
	Value   string
}

// Session is an authenticated portal session. The cookie jar holds the
// server session; it is valid for one user and is not shared.
type Session struct {
	client *http.Client
	login  string
}

// Login returns the account the session was opened for.
func (s *Session) Login() string { return s.login }

// Service is the portal contract consumed by the dialogue flows.
type Service interface {
	LogIn(ctx context.Context, login, password string) (*Session, error)
	FetchMarks(ctx context.Context, s *Session) ([]Mark, error)
	FetchRetakes(ctx context.Context, s *Session) ([]Mark, error)
}

// MetricsRecorder records portal call outcomes. Optional.
type MetricsRecorder interface {
	RecordPortalRequest(op, status string, duration float64)
}

// Client scrapes the LMS portal.
type Client struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	limiter    *ratelimit.Limiter
	metrics    MetricsRecorder
}

var _ Service = (*Client)(nil)

// NewClient creates a portal client. The rate limiter spaces out requests
// from this process so the portal does not block the bot's address.
func NewClient(baseURL string, timeout time.Duration, maxRetries int) *Client {
	rps := 1.0 / config.PortalRateLimit.Seconds()
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		maxRetries: maxRetries,
		limiter:    ratelimit.New(2, rps),
	}
}

// SetMetrics attaches a metrics recorder.
func (c *Client) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

// LogIn opens a portal session. Returns apperrors.ErrPortalAuth when the
// portal rejects the credentials; other failures are transport errors.
func (c *Client) LogIn(ctx context.Context, login, password string) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	sess := &Session{
		client: &http.Client{Timeout: c.timeout, Jar: jar},
		login:  login,
	}

	form := url.Values{}
	form.Set("login", login)
	form.Set("password", password)

	start := time.Now()
	var doc *goquery.Document
	err = RetryWithBackoff(ctx, c.maxRetries, config.PortalRetryInitial, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/login", strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("failed to create login request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", uarand.GetRandom())

		resp, err := sess.client.Do(req)
		if err != nil {
			return fmt.Errorf("login request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := checkStatus(resp, "login"); err != nil {
			return err
		}

		doc, err = parseDocument(resp)
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		c.record("login", err, start)
		return nil, apperrors.NewCollaboratorError("portal", "login", classify(err))
	}

	// The portal re-renders the login form with an error block on bad
	// credentials instead of returning a non-200 status.
	if doc.Find(".auth-error, .error_message").Length() > 0 || doc.Find("form[action*='login']").Length() > 0 {
		c.recordStatus("login", "auth_failed", start)
		return nil, apperrors.ErrPortalAuth
	}

	c.record("login", nil, start)
	return sess, nil
}

// FetchMarks loads and parses the current-term marks table.
func (c *Client) FetchMarks(ctx context.Context, s *Session) ([]Mark, error) {
	return c.fetchTable(ctx, s, "marks", "/student/marks")
}

// FetchRetakes loads and parses the retakes table.
func (c *Client) FetchRetakes(ctx context.Context, s *Session) ([]Mark, error) {
	return c.fetchTable(ctx, s, "retakes", "/student/retakes")
}

func (c *Client) fetchTable(ctx context.Context, s *Session, op, path string) ([]Mark, error) {
	start := time.Now()
	var doc *goquery.Document
	err := RetryWithBackoff(ctx, c.maxRetries, config.PortalRetryInitial, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to create %s request: %w", op, err)
		}
		req.Header.Set("User-Agent", uarand.GetRandom())

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("%s request failed: %w", op, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := checkStatus(resp, op); err != nil {
			return err
		}

		doc, err = parseDocument(resp)
		return err
	})
	c.record(op, err, start)
	if err != nil {
		return nil, apperrors.NewCollaboratorError("portal", op, classify(err))
	}

	return parseMarks(doc), nil
}

// parseMarks extracts rows from the portal's marks table. Rows with fewer
// than three cells are navigation filler and are skipped.
func parseMarks(doc *goquery.Document) []Mark {
	var marks []Mark
	doc.Find("table.marks tr, table#marks tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		marks = append(marks, Mark{
			Subject: strings.TrimSpace(cells.Eq(0).Text()),
			Control: strings.TrimSpace(cells.Eq(1).Text()),
			Value:   strings.TrimSpace(cells.Eq(2).Text()),
		})
	})
	return marks
}

// classify maps a deadline that expired with retries exhausted to the
// timeout sentinel.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	return err
}

// checkStatus maps HTTP status codes to retryable or permanent errors.
func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return Permanent(fmt.Errorf("%s: client error: status %d", op, resp.StatusCode))
	default:
		return fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}
}

// parseDocument reads the response body, decoding windows-1251 when the
// portal declares it.
func parseDocument(resp *http.Response) (*goquery.Document, error) {
	var reader io.Reader = resp.Body
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "windows-1251") || strings.Contains(contentType, "cp1251") {
		reader = transform.NewReader(reader, charmap.Windows1251.NewDecoder())
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func (c *Client) record(op string, err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
	}
	c.metrics.RecordPortalRequest(op, status, time.Since(start).Seconds())
}

func (c *Client) recordStatus(op, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordPortalRequest(op, status, time.Since(start).Seconds())
}
