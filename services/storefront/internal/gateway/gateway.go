// Package gateway calls the Gemini generateContent API for product copy and
// marketing images. Every failure degrades to an absent result.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/lagosbazaar/pkg/httpclient"
	"github.com/utafrali/lagosbazaar/pkg/tracing"
	"github.com/utafrali/lagosbazaar/pkg/validator"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/domain"
)

const (
	// DefaultBaseURL is the public Generative Language API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	defaultImageMimeType = "image/png"
	heroAspectRatio      = "16:9"
)

var errNoContent = errors.New("response contained no usable content")

// Config configures the gateway. An empty APIKey disables it.
type Config struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	Timeout    time.Duration
}

// Gateway is safe for concurrent use.
type Gateway struct {
	cfg    Config
	client *httpclient.CircuitBreakerClient
	tracer trace.Tracer
	logger *slog.Logger
}

// New creates a gateway. Outbound calls are never retried; the circuit
// breaker short-circuits while Gemini is failing.
func New(cfg Config, logger *slog.Logger) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpCfg := httpclient.DefaultConfig()
	httpCfg.MaxRetries = 0
	if cfg.Timeout > 0 {
		httpCfg.Timeout = cfg.Timeout
	}

	return &Gateway{
		cfg: cfg,
		client: httpclient.NewCircuitBreakerClient(
			httpclient.New(httpCfg),
			httpclient.DefaultCircuitBreakerConfig("gemini"),
			logger,
		),
		tracer: tracing.Tracer("github.com/utafrali/lagosbazaar/services/storefront/gateway"),
		logger: logger,
	}
}

// Enabled reports whether an API key is configured.
func (g *Gateway) Enabled() bool {
	return g.cfg.APIKey != ""
}

// GenerateProductContent asks the text model for localized marketing copy.
// It returns nil on any failure.
func (g *Gateway) GenerateProductContent(ctx context.Context, productName, category string) *domain.AIContent {
	if !g.Enabled() {
		g.logger.WarnContext(ctx, "gemini api key not configured, skipping product content")
		aiRequestsTotal.WithLabelValues(opProductContent, outcomeDisabled).Inc()
		return nil
	}

	ctx, span := g.tracer.Start(ctx, "gemini.GenerateProductContent", trace.WithAttributes(
		attribute.String("gemini.model", g.cfg.TextModel),
		attribute.String("product.name", productName),
		attribute.String("product.category", category),
	))
	defer span.End()
	start := time.Now()
	defer func() { aiRequestDuration.WithLabelValues(opProductContent).Observe(time.Since(start).Seconds()) }()

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: productContentPrompt(productName, category)}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   productContentSchema,
		},
	}

	var resp generateResponse
	if err := g.generate(ctx, g.cfg.TextModel, req, &resp); err != nil {
		g.degrade(ctx, span, opProductContent, callOutcome(err), err)
		return nil
	}

	aic, err := decodeProductContent(resp)
	if err != nil {
		g.degrade(ctx, span, opProductContent, outcomeInvalidPayload, err)
		return nil
	}

	aiRequestsTotal.WithLabelValues(opProductContent, outcomeSuccess).Inc()
	return aic
}

// GenerateMarketingImage asks the image model for a 16:9 image and returns it
// as a data URI. It returns "" on any failure.
func (g *Gateway) GenerateMarketingImage(ctx context.Context, prompt string) string {
	if !g.Enabled() {
		g.logger.WarnContext(ctx, "gemini api key not configured, skipping image generation")
		aiRequestsTotal.WithLabelValues(opMarketingImage, outcomeDisabled).Inc()
		return ""
	}

	ctx, span := g.tracer.Start(ctx, "gemini.GenerateMarketingImage", trace.WithAttributes(
		attribute.String("gemini.model", g.cfg.ImageModel),
	))
	defer span.End()
	start := time.Now()
	defer func() { aiRequestDuration.WithLabelValues(opMarketingImage).Observe(time.Since(start).Seconds()) }()

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &imageConfig{AspectRatio: heroAspectRatio},
		},
	}

	var resp generateResponse
	if err := g.generate(ctx, g.cfg.ImageModel, req, &resp); err != nil {
		g.degrade(ctx, span, opMarketingImage, callOutcome(err), err)
		return ""
	}

	uri, err := firstInlineImage(resp)
	if err != nil {
		g.degrade(ctx, span, opMarketingImage, outcomeInvalidPayload, err)
		return ""
	}

	aiRequestsTotal.WithLabelValues(opMarketingImage, outcomeSuccess).Inc()
	return uri
}

func (g *Gateway) generate(ctx context.Context, model string, req generateRequest, out *generateResponse) error {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, url.PathEscape(model))
	header := http.Header{}
	header.Set("x-goog-api-key", g.cfg.APIKey)
	return g.client.PostJSON(ctx, endpoint, header, req, out)
}

// callOutcome classifies a failed generateContent call.
func callOutcome(err error) string {
	switch {
	case errors.Is(err, httpclient.ErrCircuitOpen):
		return outcomeCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout
	default:
		return outcomeUpstreamError
	}
}

func (g *Gateway) degrade(ctx context.Context, span trace.Span, op, outcome string, err error) {
	tracing.RecordError(span, err)
	aiRequestsTotal.WithLabelValues(op, outcome).Inc()
	g.logger.WarnContext(ctx, "gemini request degraded",
		slog.String("operation", op),
		slog.String("outcome", outcome),
		slog.String("error", err.Error()),
	)
}

func decodeProductContent(resp generateResponse) (*domain.AIContent, error) {
	text := responseText(resp)
	if text == "" {
		return nil, errNoContent
	}

	var payload contentPayload
	if err := jsonUnmarshal(text, &payload); err != nil {
		return nil, fmt.Errorf("decode product content: %w", err)
	}
	if err := validator.Validate(payload); err != nil {
		return nil, fmt.Errorf("validate product content: %w", err)
	}

	return &domain.AIContent{
		SalesPitch:  payload.SalesPitch,
		KeyFeatures: payload.KeyFeatures,
		SEOTags:     payload.SEOTags,
	}, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

func firstInlineImage(resp generateResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errNoContent
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		mime := p.InlineData.MimeType
		if mime == "" {
			mime = defaultImageMimeType
		}
		return "data:" + mime + ";base64," + p.InlineData.Data, nil
	}
	return "", errNoContent
}
