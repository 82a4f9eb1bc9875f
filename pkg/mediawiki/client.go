// Package mediawiki provides a client for the MediaWiki Action API and the
// Wikipedia REST API. Every outbound call passes the shared rate limiter
// before it is issued, and transient failures are retried with backoff.
package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/cinedata/filmset-cli/internal/resilience"
)

// MemberType selects which kind of category member to list.
type MemberType string

const (
	// MemberSubcategory lists subcategories of a category.
	MemberSubcategory MemberType = "subcat"
	// MemberPage lists regular pages of a category.
	MemberPage MemberType = "page"
)

// Client defines the MediaWiki operations the pipeline needs.
type Client interface {
	// CategoryMembers lists the members of a category (without the
	// "Category:" prefix on the category argument). Titles are returned as
	// the API reports them; subcategory titles keep their prefix.
	CategoryMembers(ctx context.Context, category string, mt MemberType) ([]string, error)

	// ResolveQIDs maps page titles to Wikidata Q-IDs via pageprops. Titles
	// with no associated entity are absent from the returned map.
	ResolveQIDs(ctx context.Context, titles []string) (map[string]string, error)

	// Summary fetches the plain-text summary of a page. A missing page
	// returns resilience.ErrNotFound.
	Summary(ctx context.Context, title string) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom Action API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithRESTBaseURL sets a custom REST API base URL (for testing).
func WithRESTBaseURL(u string) Option {
	return func(c *httpClient) {
		c.restBaseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter installs the shared admission gate. All calls block on it
// before touching the network.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// WithUserAgent sets the User-Agent header required by Wikimedia guidelines.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithRetry overrides the retry configuration.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithBatchSize sets how many titles a single pageprops request carries.
func WithBatchSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

type httpClient struct {
	baseURL     string
	restBaseURL string
	userAgent   string
	batchSize   int
	retry       resilience.RetryConfig
	limiter     *rate.Limiter
	http        *http.Client
}

// NewClient creates a MediaWiki client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:     "https://en.wikipedia.org/w/api.php",
		restBaseURL: "https://en.wikipedia.org/api/rest_v1",
		userAgent:   "filmset-cli/1.0",
		batchSize:   50,
		retry:       resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response[T any] struct {
	parsed T
	status int
}

// getJSON issues one rate-gated, retried GET and decodes a 200 body into T.
// Transient statuses and garbled bodies consume retry attempts inside; any
// other status is returned to the caller with a zero T.
func getJSON[T any](ctx context.Context, c *httpClient, op, reqURL string) (T, int, error) {
	var zero T
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, 0, eris.Wrap(err, "mediawiki: rate gate")
		}
	}

	resp, err := resilience.RetryVal(ctx, c.retry, op, func(ctx context.Context) (response[T], error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return response[T]{}, eris.Wrap(err, "mediawiki: create request")
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			return response[T]{}, resilience.NewTransientError(err, 0)
		}
		body, readErr := io.ReadAll(res.Body)
		_ = res.Body.Close()
		if readErr != nil {
			return response[T]{}, resilience.NewTransientError(readErr, res.StatusCode)
		}
		if resilience.IsTransientHTTPStatus(res.StatusCode) {
			return response[T]{}, resilience.NewTransientError(
				eris.Errorf("mediawiki: status %d: %s", res.StatusCode, string(body)), res.StatusCode)
		}

		out := response[T]{status: res.StatusCode}
		if res.StatusCode == http.StatusOK {
			// A garbled 200 body from an overloaded endpoint is transient.
			if err := json.Unmarshal(body, &out.parsed); err != nil {
				return response[T]{}, resilience.NewTransientError(
					eris.Wrapf(err, "mediawiki: unmarshal %s response", op), res.StatusCode)
			}
		}
		return out, nil
	})
	if err != nil {
		return zero, 0, err
	}
	return resp.parsed, resp.status, nil
}

type categoryMembersResponse struct {
	Continue struct {
		CMContinue string `json:"cmcontinue"`
	} `json:"continue"`
	Query struct {
		CategoryMembers []struct {
			Title string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
}

func (c *httpClient) CategoryMembers(ctx context.Context, category string, mt MemberType) ([]string, error) {
	var members []string
	cont := ""
	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("format", "json")
		params.Set("list", "categorymembers")
		params.Set("cmtitle", "Category:"+category)
		params.Set("cmtype", string(mt))
		params.Set("cmlimit", "max")
		if cont != "" {
			params.Set("cmcontinue", cont)
		}

		parsed, status, err := getJSON[categoryMembersResponse](ctx, c, "categorymembers", c.baseURL+"?"+params.Encode())
		if err != nil {
			return nil, eris.Wrapf(err, "mediawiki: category members %q", category)
		}
		if status != http.StatusOK {
			return nil, eris.Errorf("mediawiki: category members %q: unexpected status %d", category, status)
		}

		for _, m := range parsed.Query.CategoryMembers {
			members = append(members, m.Title)
		}

		cont = parsed.Continue.CMContinue
		if cont == "" {
			break
		}
	}
	return members, nil
}

type pagePropsResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string `json:"title"`
			Missing   any    `json:"missing,omitempty"`
			PageProps struct {
				WikibaseItem string `json:"wikibase_item"`
			} `json:"pageprops"`
		} `json:"pages"`
	} `json:"query"`
}

func (c *httpClient) ResolveQIDs(ctx context.Context, titles []string) (map[string]string, error) {
	qids := make(map[string]string)
	for start := 0; start < len(titles); start += c.batchSize {
		end := min(start+c.batchSize, len(titles))
		batch := titles[start:end]

		params := url.Values{}
		params.Set("action", "query")
		params.Set("format", "json")
		params.Set("titles", strings.Join(batch, "|"))
		params.Set("prop", "pageprops")
		params.Set("ppprop", "wikibase_item")

		parsed, status, err := getJSON[pagePropsResponse](ctx, c, "pageprops", c.baseURL+"?"+params.Encode())
		if err != nil {
			return qids, eris.Wrap(err, "mediawiki: resolve qids")
		}
		if status != http.StatusOK {
			return qids, eris.Errorf("mediawiki: resolve qids: unexpected status %d", status)
		}

		for _, page := range parsed.Query.Pages {
			if page.PageProps.WikibaseItem != "" {
				qids[page.Title] = page.PageProps.WikibaseItem
			}
		}
	}
	return qids, nil
}

type summaryResponse struct {
	Extract string `json:"extract"`
}

func (c *httpClient) Summary(ctx context.Context, title string) (string, error) {
	reqURL := fmt.Sprintf("%s/page/summary/%s", c.restBaseURL, url.PathEscape(title))

	parsed, status, err := getJSON[summaryResponse](ctx, c, "summary", reqURL)
	if err != nil {
		return "", eris.Wrapf(err, "mediawiki: summary %q", title)
	}
	if status == http.StatusNotFound {
		return "", resilience.ErrNotFound
	}
	if status != http.StatusOK {
		return "", eris.Errorf("mediawiki: summary %q: unexpected status %d", title, status)
	}
	return parsed.Extract, nil
}
