package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/lagosbazaar/pkg/httpclient"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	if buf == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func textResponse(text string) generateResponse {
	return generateResponse{Candidates: []candidate{{
		Content: content{Role: "model", Parts: []part{{Text: text}}},
	}}}
}

const validPayload = `{
	"salesPitch": "This phone dey shine! Correct battery wey go last you all day.",
	"keyFeatures": ["Long battery", "Sharp camera", "Fast charging"],
	"seoTags": ["phone", "tecno", "lagos", "android", "cheap phone"]
}`

type recorded struct {
	path   string
	apiKey string
	body   generateRequest
}

func newGeminiServer(t *testing.T, status int, resp any) (*httptest.Server, *atomic.Int32, chan recorded) {
	t.Helper()
	var hits atomic.Int32
	reqs := make(chan recorded, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var body generateRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		reqs <- recorded{path: r.URL.Path, apiKey: r.Header.Get("x-goog-api-key"), body: body}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, reqs
}

func newGateway(baseURL, key string, buf *bytes.Buffer) *Gateway {
	return New(Config{
		APIKey:     key,
		BaseURL:    baseURL,
		TextModel:  "gemini-2.5-flash",
		ImageModel: "gemini-2.5-flash-image",
		Timeout:    5 * time.Second,
	}, testLogger(buf))
}

func TestGenerateProductContent_Success(t *testing.T) {
	srv, _, reqs := newGeminiServer(t, http.StatusOK, textResponse(validPayload))
	g := newGateway(srv.URL, "secret", nil)

	got := g.GenerateProductContent(context.Background(), "Tecno Camon 30", "Phones & Tablets")
	require.NotNil(t, got)
	assert.Contains(t, got.SalesPitch, "dey shine")
	assert.Len(t, got.KeyFeatures, 3)
	assert.Len(t, got.SEOTags, 5)

	rec := <-reqs
	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", rec.path)
	assert.Equal(t, "secret", rec.apiKey)
	require.NotNil(t, rec.body.GenerationConfig)
	assert.Equal(t, "application/json", rec.body.GenerationConfig.ResponseMimeType)
	require.NotNil(t, rec.body.GenerationConfig.ResponseSchema)
	assert.ElementsMatch(t, []string{"salesPitch", "keyFeatures", "seoTags"}, rec.body.GenerationConfig.ResponseSchema.Required)
	require.Len(t, rec.body.Contents, 1)
	prompt := rec.body.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, `"Tecno Camon 30"`)
	assert.Contains(t, prompt, `"Phones & Tablets"`)
}

func TestGenerateProductContent_FencedJSON(t *testing.T) {
	srv, _, _ := newGeminiServer(t, http.StatusOK, textResponse("```json\n"+validPayload+"\n```"))
	g := newGateway(srv.URL, "secret", nil)

	assert.NotNil(t, g.GenerateProductContent(context.Background(), "x", "y"))
}

func TestGenerateProductContent_DisabledMakesNoCall(t *testing.T) {
	srv, hits, _ := newGeminiServer(t, http.StatusOK, textResponse(validPayload))
	var buf bytes.Buffer
	g := newGateway(srv.URL, "", &buf)

	assert.False(t, g.Enabled())
	assert.Nil(t, g.GenerateProductContent(context.Background(), "x", "y"))
	assert.Empty(t, g.GenerateMarketingImage(context.Background(), "hero"))
	assert.Equal(t, int32(0), hits.Load())
	assert.Contains(t, buf.String(), "api key not configured")
}

func TestGenerateProductContent_InvalidPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":            "Sorry, I cannot help with that.",
		"missing pitch":       `{"keyFeatures":["a","b","c"],"seoTags":["1","2","3","4","5"]}`,
		"too few features":    `{"salesPitch":"p","keyFeatures":["a","b"],"seoTags":["1","2","3","4","5"]}`,
		"too many features":   `{"salesPitch":"p","keyFeatures":["a","b","c","d","e"],"seoTags":["1","2","3","4","5"]}`,
		"wrong tag count":     `{"salesPitch":"p","keyFeatures":["a","b","c"],"seoTags":["1","2","3"]}`,
		"empty feature entry": `{"salesPitch":"p","keyFeatures":["a","","c"],"seoTags":["1","2","3","4","5"]}`,
		"empty text":          "",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _, _ := newGeminiServer(t, http.StatusOK, textResponse(text))
			var buf bytes.Buffer
			g := newGateway(srv.URL, "secret", &buf)

			assert.Nil(t, g.GenerateProductContent(context.Background(), "x", "y"))
			assert.Contains(t, buf.String(), "invalid_payload")
		})
	}
}

func TestGenerateProductContent_UpstreamErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusTooManyRequests, http.StatusInternalServerError} {
		srv, hits, _ := newGeminiServer(t, status, map[string]any{
			"error": map[string]any{"code": status, "message": "nope", "status": "FAILED"},
		})
		var buf bytes.Buffer
		g := newGateway(srv.URL, "secret", &buf)

		assert.Nil(t, g.GenerateProductContent(context.Background(), "x", "y"), "status %d", status)
		assert.Equal(t, int32(1), hits.Load(), "no retry for status %d", status)
		assert.Contains(t, buf.String(), "upstream_error")
	}
}

func TestGenerateProductContent_NoCandidates(t *testing.T) {
	srv, _, _ := newGeminiServer(t, http.StatusOK, generateResponse{})
	g := newGateway(srv.URL, "secret", nil)

	assert.Nil(t, g.GenerateProductContent(context.Background(), "x", "y"))
}

func TestGenerateProductContent_CancelledContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() { close(block); srv.Close() })
	g := newGateway(srv.URL, "secret", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Nil(t, g.GenerateProductContent(ctx, "x", "y"))
}

func TestGenerateProductContent_OpenBreakerIsAbsent(t *testing.T) {
	srv, hits, _ := newGeminiServer(t, http.StatusServiceUnavailable, map[string]any{})
	g := newGateway(srv.URL, "secret", nil)

	for i := 0; i < 5; i++ {
		assert.Nil(t, g.GenerateProductContent(context.Background(), "x", "y"))
	}
	require.Equal(t, int32(5), hits.Load())

	assert.Nil(t, g.GenerateProductContent(context.Background(), "x", "y"))
	assert.Equal(t, int32(5), hits.Load())
}

func TestGenerateMarketingImage_Success(t *testing.T) {
	resp := generateResponse{Candidates: []candidate{{Content: content{Parts: []part{
		{Text: "Here is your image"},
		{InlineData: &inlineData{MimeType: "image/jpeg", Data: "QUJD"}},
	}}}}}
	srv, _, reqs := newGeminiServer(t, http.StatusOK, resp)
	g := newGateway(srv.URL, "secret", nil)

	got := g.GenerateMarketingImage(context.Background(), "A Lagos market")
	assert.Equal(t, "data:image/jpeg;base64,QUJD", got)

	rec := <-reqs
	assert.True(t, strings.HasSuffix(rec.path, "/models/gemini-2.5-flash-image:generateContent"))
	require.NotNil(t, rec.body.GenerationConfig.ImageConfig)
	assert.Equal(t, "16:9", rec.body.GenerationConfig.ImageConfig.AspectRatio)
	assert.Equal(t, "A Lagos market", rec.body.Contents[0].Parts[0].Text)
}

func TestGenerateMarketingImage_DefaultsMimeType(t *testing.T) {
	resp := generateResponse{Candidates: []candidate{{Content: content{Parts: []part{
		{InlineData: &inlineData{Data: "QUJD"}},
	}}}}}
	srv, _, _ := newGeminiServer(t, http.StatusOK, resp)
	g := newGateway(srv.URL, "secret", nil)

	assert.Equal(t, "data:image/png;base64,QUJD", g.GenerateMarketingImage(context.Background(), "p"))
}

func TestGenerateMarketingImage_NoImagePart(t *testing.T) {
	srv, _, _ := newGeminiServer(t, http.StatusOK, textResponse("I can only describe it."))
	var buf bytes.Buffer
	g := newGateway(srv.URL, "secret", &buf)

	assert.Empty(t, g.GenerateMarketingImage(context.Background(), "p"))
	assert.Contains(t, buf.String(), "invalid_payload")
}

func TestNew_DefaultsBaseURL(t *testing.T) {
	g := New(Config{APIKey: "k"}, testLogger(nil))
	assert.Equal(t, DefaultBaseURL, g.cfg.BaseURL)

	g = New(Config{BaseURL: "http://localhost:9999/"}, testLogger(nil))
	assert.Equal(t, "http://localhost:9999", g.cfg.BaseURL)
}

func TestCallOutcome(t *testing.T) {
	assert.Equal(t, outcomeCircuitOpen, callOutcome(fmt.Errorf("gemini: %w", httpclient.ErrCircuitOpen)))
	assert.Equal(t, outcomeTimeout, callOutcome(fmt.Errorf("post: %w", context.DeadlineExceeded)))
	assert.Equal(t, outcomeUpstreamError, callOutcome(errors.New("connection refused")))
}
