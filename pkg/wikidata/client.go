// Package wikidata provides a client for the Wikidata SPARQL endpoint.
package wikidata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/cinedata/filmset-cli/internal/model"
	"github.com/cinedata/filmset-cli/internal/resilience"
)

// Client defines the Wikidata operations the pipeline needs.
type Client interface {
	// FilmMetadata resolves IMDB id, release year and associated people for
	// a batch of Q-IDs in a single SPARQL query. Entities with none of the
	// requested properties are absent from the returned map.
	FilmMetadata(ctx context.Context, qids []string) (map[string]model.FilmMeta, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithEndpoint sets a custom SPARQL endpoint (for testing).
func WithEndpoint(u string) Option {
	return func(c *httpClient) {
		c.endpoint = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter installs the shared admission gate.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// WithUserAgent sets the User-Agent header.
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

type httpClient struct {
	endpoint  string
	userAgent string
	retry     resilience.RetryConfig
	limiter   *rate.Limiter
	http      *http.Client
}

// NewClient creates a Wikidata SPARQL client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		endpoint:  "https://query.wikidata.org/sparql",
		userAgent: "filmset-cli/1.0",
		retry:     resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sparqlResponse mirrors the SPARQL 1.1 JSON results format.
type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// filmQuery asks for imdb id (P345), publication date (P577) and the labels
// of directors, cast, producers and screenwriters (P57, P161, P162, P58).
const filmQuery = `SELECT ?film ?imdb ?date ?personLabel WHERE {
  VALUES ?film { %s }
  OPTIONAL { ?film wdt:P345 ?imdb. }
  OPTIONAL { ?film wdt:P577 ?date. }
  OPTIONAL { ?film ?prop ?person.
             VALUES ?prop { wdt:P57 wdt:P161 wdt:P162 wdt:P58 } }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}`

func (c *httpClient) FilmMetadata(ctx context.Context, qids []string) (map[string]model.FilmMeta, error) {
	if len(qids) == 0 {
		return map[string]model.FilmMeta{}, nil
	}

	values := make([]string, len(qids))
	for i, q := range qids {
		values[i] = "wd:" + q
	}
	query := strings.Replace(filmQuery, "%s", strings.Join(values, " "), 1)

	parsed, err := c.runQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.FilmMeta)
	seenPeople := make(map[string]map[string]bool)
	for _, row := range parsed.Results.Bindings {
		film, ok := row["film"]
		if !ok {
			continue
		}
		qid := film.Value[strings.LastIndex(film.Value, "/")+1:]

		meta := out[qid]
		if imdb, ok := row["imdb"]; ok && meta.IMDBID == "" {
			meta.IMDBID = imdb.Value
		}
		if date, ok := row["date"]; ok && meta.Year == 0 {
			meta.Year = yearOf(date.Value)
		}
		if person, ok := row["personLabel"]; ok && person.Value != "" {
			if seenPeople[qid] == nil {
				seenPeople[qid] = make(map[string]bool)
			}
			if !seenPeople[qid][person.Value] {
				seenPeople[qid][person.Value] = true
				meta.People = append(meta.People, person.Value)
			}
		}
		out[qid] = meta
	}
	return out, nil
}

// runQuery issues one rate-gated, retried SPARQL GET and decodes the result.
// Transient statuses and garbled bodies consume retry attempts inside.
func (c *httpClient) runQuery(ctx context.Context, query string) (sparqlResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return sparqlResponse{}, eris.Wrap(err, "wikidata: rate gate")
		}
	}

	reqURL := c.endpoint + "?format=json&query=" + url.QueryEscape(query)

	return resilience.RetryVal(ctx, c.retry, "sparql", func(ctx context.Context) (sparqlResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return sparqlResponse{}, eris.Wrap(err, "wikidata: create request")
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/sparql-results+json")

		res, err := c.http.Do(req)
		if err != nil {
			return sparqlResponse{}, resilience.NewTransientError(err, 0)
		}
		body, readErr := io.ReadAll(res.Body)
		_ = res.Body.Close()
		if readErr != nil {
			return sparqlResponse{}, resilience.NewTransientError(readErr, res.StatusCode)
		}
		if resilience.IsTransientHTTPStatus(res.StatusCode) {
			return sparqlResponse{}, resilience.NewTransientError(
				eris.Errorf("wikidata: status %d: %s", res.StatusCode, string(body)), res.StatusCode)
		}
		if res.StatusCode != http.StatusOK {
			return sparqlResponse{}, eris.Errorf("wikidata: unexpected status %d: %s", res.StatusCode, string(body))
		}

		var parsed sparqlResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			// A garbled 200 body from an overloaded endpoint is transient.
			return sparqlResponse{}, resilience.NewTransientError(
				eris.Wrap(err, "wikidata: unmarshal sparql response"), res.StatusCode)
		}
		return parsed, nil
	})
}

// yearOf extracts the year from an xsd:dateTime value like "1994-05-20T00:00:00Z".
func yearOf(date string) int {
	if i := strings.IndexByte(date, '-'); i > 0 {
		date = date[:i]
	}
	y, err := strconv.Atoi(date)
	if err != nil {
		return 0
	}
	return y
}
