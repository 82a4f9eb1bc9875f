package mediawiki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinedata/filmset-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestCategoryMembers_FollowsContinuation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "query", q.Get("action"))
		assert.Equal(t, "categorymembers", q.Get("list"))
		assert.Equal(t, "Category:Indian films by decade", q.Get("cmtitle"))
		assert.Equal(t, "subcat", q.Get("cmtype"))

		switch n {
		case 1:
			assert.Empty(t, q.Get("cmcontinue"))
			fmt.Fprint(w, `{
				"continue": {"cmcontinue": "page|abc|123"},
				"query": {"categorymembers": [
					{"title": "Category:1990s Indian films"},
					{"title": "Category:2000s Indian films"}
				]}
			}`)
		default:
			assert.Equal(t, "page|abc|123", q.Get("cmcontinue"))
			fmt.Fprint(w, `{"query": {"categorymembers": [
				{"title": "Category:2010s Indian films"}
			]}}`)
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	members, err := c.CategoryMembers(context.Background(), "Indian films by decade", MemberSubcategory)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Category:1990s Indian films",
		"Category:2000s Indian films",
		"Category:2010s Indian films",
	}, members)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolveQIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "pageprops", q.Get("prop"))
		assert.Equal(t, "wikibase_item", q.Get("ppprop"))
		assert.Equal(t, "Roja|Obscure Film", q.Get("titles"))

		fmt.Fprint(w, `{"query": {"pages": {
			"123": {"title": "Roja", "pageprops": {"wikibase_item": "Q1637089"}},
			"456": {"title": "Obscure Film", "pageprops": {}}
		}}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	qids, err := c.ResolveQIDs(context.Background(), []string{"Roja", "Obscure Film"})
	require.NoError(t, err)

	// Titles without an entity are absent, not empty.
	assert.Equal(t, map[string]string{"Roja": "Q1637089"}, qids)
}

func TestResolveQIDs_Batches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"query": {"pages": {}}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()), WithBatchSize(2))
	_, err := c.ResolveQIDs(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page/summary/Roja%20%28film%29", r.URL.EscapedPath())
		fmt.Fprint(w, `{"extract": "Roja is a 1992 Indian Tamil-language film."}`)
	}))
	defer srv.Close()

	c := NewClient(WithRESTBaseURL(srv.URL), WithRetry(fastRetry()))
	summary, err := c.Summary(context.Background(), "Roja (film)")
	require.NoError(t, err)
	assert.Equal(t, "Roja is a 1992 Indian Tamil-language film.", summary)
}

func TestSummary_MissingPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithRESTBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := c.Summary(context.Background(), "No Such Film")
	assert.ErrorIs(t, err, resilience.ErrNotFound)
}

func TestGet_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"extract": "ok"}`)
	}))
	defer srv.Close()

	c := NewClient(WithRESTBaseURL(srv.URL), WithRetry(fastRetry()))
	summary, err := c.Summary(context.Background(), "Flaky Film")
	require.NoError(t, err)
	assert.Equal(t, "ok", summary)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_RetriesGarbledBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			fmt.Fprint(w, `{"query": {"categorymembers": [`)
			return
		}
		fmt.Fprint(w, `{"query": {"categorymembers": [{"title": "Roja"}]}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	members, err := c.CategoryMembers(context.Background(), "g", MemberPage)
	require.NoError(t, err)
	assert.Equal(t, []string{"Roja"}, members)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_SendsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "filmset-test/1.0 (test@example.com)", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"query": {"categorymembers": []}}`)
	}))
	defer srv.Close()

	c := NewClient(
		WithBaseURL(srv.URL),
		WithRetry(fastRetry()),
		WithUserAgent("filmset-test/1.0 (test@example.com)"),
	)
	_, err := c.CategoryMembers(context.Background(), "g", MemberPage)
	require.NoError(t, err)
}
