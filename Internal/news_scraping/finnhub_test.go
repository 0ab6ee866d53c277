package newsscraping

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	datafeed "github.com/fazecat/smarttrader/Internal/database"
	"github.com/fazecat/smarttrader/Internal/ports"
)

func testClient(t *testing.T, cfg FinnhubConfig, handler http.HandlerFunc) *FinnhubClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	cfg.APIKey = "token"
	c, err := NewFinnhubClient(cfg, zerolog.Nop())
	require.NoError(t, err)
	c.retry = datafeed.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	c.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestLexiconScore(t *testing.T) {
	lex := NewLexicon()

	score, label := lex.Score("Shares SURGE after earnings beat")
	assert.InDelta(t, 0.925, score, 1e-9)
	assert.Equal(t, Positive, label)

	score, label = lex.Score("Stock plunges on fraud probe.")
	assert.InDelta(t, -(1.0+0.95+0.85)/3, score, 1e-9)
	assert.Equal(t, Negative, label)

	score, label = lex.Score("Company holds annual meeting")
	assert.Zero(t, score)
	assert.Equal(t, Neutral, label)

	score, _ = lex.Score("gains offset by losses")
	assert.Zero(t, score)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(1.7))
	assert.Equal(t, -1.0, Clamp(-3))
	assert.Equal(t, 0.25, Clamp(0.25))
}

func TestFinnhubSentiment_BlendsNewsAndSocial(t *testing.T) {
	c := testClient(t, FinnhubConfig{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token", r.URL.Query().Get("token"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		switch r.URL.Path {
		case "/company-news":
			assert.Equal(t, "2025-03-03", r.URL.Query().Get("from"))
			assert.Equal(t, "2025-03-10", r.URL.Query().Get("to"))
			fmt.Fprint(w, `[
				{"id":1,"datetime":1741600000,"headline":"Apple shares surge","summary":"","source":"x","url":"u1"},
				{"id":2,"datetime":1741500000,"headline":"Quiet day","summary":"","source":"x","url":"u2"}
			]`)
		case "/stock/social-sentiment":
			fmt.Fprint(w, `{"reddit":[{"mention":3,"score":0.5}],"twitter":[{"mention":5,"score":-0.1}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	got, err := c.Sentiment(context.Background(), "AAPL")
	require.NoError(t, err)
	// news mean 0.5, social mean 0.2
	assert.InDelta(t, 0.5*0.6+0.2*0.4, got, 1e-9)
}

func TestFinnhubSentiment_SocialForbiddenCountsAsZero(t *testing.T) {
	c := testClient(t, FinnhubConfig{}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stock/social-sentiment" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `[{"id":1,"datetime":1741600000,"headline":"Earnings miss","url":"u1"}]`)
	})

	got, err := c.Sentiment(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, -0.8*0.6, got, 1e-9)
}

func TestFinnhubSentiment_BothFail(t *testing.T) {
	c := testClient(t, FinnhubConfig{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Sentiment(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ports.ErrProviderFailure)
}

func TestFinnhubSentiment_NewsOnly(t *testing.T) {
	c := testClient(t, FinnhubConfig{NewsOnly: true}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company-news", r.URL.Path)
		fmt.Fprint(w, `[{"id":1,"datetime":1741600000,"headline":"Analysts upgrade stock","url":"u1"}]`)
	})

	got, err := c.Sentiment(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.InDelta(t, 0.85, got, 1e-9)
}

func TestFetchNews_LimitsAndScores(t *testing.T) {
	c := testClient(t, FinnhubConfig{}, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":1,"datetime":1741600000,"headline":"Stock tumbles","url":"u1"},
			{"id":2,"datetime":1741500000,"headline":"Stock rallies","url":"u2"},
			{"id":3,"datetime":1741400000,"headline":"Stock flat","url":"u3"}
		]`)
	})

	articles, err := c.FetchNews(context.Background(), "TSLA", 2)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "TSLA", articles[0].Symbol)
	assert.InDelta(t, -0.95, articles[0].Sentiment, 1e-9)
	assert.Equal(t, int64(1741600000), articles[0].PublishedAt.Unix())
}

func TestNewFinnhubClient_RequiresKey(t *testing.T) {
	_, err := NewFinnhubClient(FinnhubConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, ports.ErrConfiguration)
}
