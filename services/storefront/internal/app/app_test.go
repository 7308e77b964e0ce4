package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/lagosbazaar/pkg/logger"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/config"
)

func newTestApp(t *testing.T, vars map[string]string) *App {
	t.Helper()

	cfg, err := config.LoadFromMap(vars)
	require.NoError(t, err)

	a, err := NewApp(cfg, logger.NewWithWriter("storefront-test", "error", &bytes.Buffer{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func TestNewApp_EmbeddedCatalogAndMemoryCache(t *testing.T) {
	a := newTestApp(t, nil)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/storefront/categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data)
	assert.Equal(t, "All Categories", body.Data[0])
}

func TestNewApp_HeroFallbackWithoutAPIKey(t *testing.T) {
	a := newTestApp(t, nil)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/storefront/hero", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			URL       string `json:"url"`
			Generated bool   `json:"generated"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, config.DefaultHeroFallbackURL, body.Data.URL)
	assert.False(t, body.Data.Generated)
}

func TestNewApp_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	a := newTestApp(t, map[string]string{
		"CACHE_BACKEND": "redis",
		"REDIS_ADDR":    mr.Addr(),
	})
	require.NotNil(t, a.rdb)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg, err := config.LoadFromMap(map[string]string{
		"CACHE_BACKEND": "redis",
		"REDIS_ADDR":    addr,
	})
	require.NoError(t, err)

	a, err := NewApp(cfg, logger.NewWithWriter("storefront-test", "error", &bytes.Buffer{}))
	assert.Nil(t, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

// slowGemini answers image requests only after delay.
func slowGemini(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"QUJD"}}]}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

type heroBody struct {
	Data struct {
		URL       string `json:"url"`
		Generated bool   `json:"generated"`
	} `json:"data"`
}

func getHero(client *http.Client, base, sid string) (heroBody, error) {
	req, err := http.NewRequest(http.MethodGet, base+"/api/v1/storefront/hero", nil)
	if err != nil {
		return heroBody{}, err
	}
	req.Header.Set("X-Session-ID", sid)

	resp, err := client.Do(req)
	if err != nil {
		return heroBody{}, err
	}
	defer resp.Body.Close()

	var body heroBody
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, json.NewDecoder(resp.Body).Decode(&body)
}

func TestRun_SlowHeroGenerationAnswersBeforeWriteDeadline(t *testing.T) {
	const writeTimeout = time.Second
	gemini := slowGemini(t, 3*writeTimeout/2)
	port := freePort(t)

	cfg, err := config.LoadFromMap(map[string]string{
		"STOREFRONT_HTTP_PORT": strconv.Itoa(port),
		"GEMINI_API_KEY":       "secret",
		"GEMINI_BASE_URL":      gemini.URL,
		"AI_REQUEST_TIMEOUT":   "5s",
		"HERO_WAIT_TIMEOUT":    "200ms",
		"HTTP_REQUEST_TIMEOUT": "500ms",
		"HTTP_WRITE_TIMEOUT":   writeTimeout.String(),
		"AI_RATE_LIMIT_RPS":    "100",
		"AI_RATE_LIMIT_BURST":  "100",
	})
	require.NoError(t, err)
	a, err := NewApp(cfg, logger.NewWithWriter("storefront-test", "error", &bytes.Buffer{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-runErr)
	})

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	client := &http.Client{Timeout: 5 * time.Second}
	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/health/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	sid := uuid.NewString()
	start := time.Now()
	body, err := getHero(client, base, sid)
	require.NoError(t, err, "hero request must complete before the write deadline")
	assert.Less(t, time.Since(start), writeTimeout)
	assert.Equal(t, config.DefaultHeroFallbackURL, body.Data.URL)
	assert.False(t, body.Data.Generated)

	// The generation outlives the request and fills the session's cache.
	require.Eventually(t, func() bool {
		body, err := getHero(client, base, sid)
		return err == nil && body.Data.Generated
	}, 4*time.Second, 100*time.Millisecond)

	body, err = getHero(client, base, sid)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,QUJD", body.Data.URL)
}
