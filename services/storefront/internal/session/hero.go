package session

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/lagosbazaar/services/storefront/internal/cache"
)

// ImageGenerator produces a marketing image as a data URI. "" means absent.
type ImageGenerator interface {
	GenerateMarketingImage(ctx context.Context, prompt string) string
}

// DefaultHeroWait bounds how long a caller waits for a generation in flight.
const DefaultHeroWait = 10 * time.Second

// HeroConfig configures the hero image loader. Timeout bounds the generation
// itself; Wait bounds how long Resolve blocks before answering with the
// fallback. Wait must stay below the HTTP server's write timeout.
type HeroConfig struct {
	Prompt      string
	FallbackURL string
	Timeout     time.Duration
	Wait        time.Duration
}

// HeroLoader resolves a session's hero image: cached value first, then one
// generation per session, then the static fallback.
type HeroLoader struct {
	cache  cache.Cache
	images ImageGenerator
	cfg    HeroConfig
	group  singleflight.Group
	logger *slog.Logger
}

// NewHeroLoader creates a hero loader.
func NewHeroLoader(c cache.Cache, images ImageGenerator, cfg HeroConfig, logger *slog.Logger) *HeroLoader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAITimeout
	}
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultHeroWait
	}
	return &HeroLoader{cache: c, images: images, cfg: cfg, logger: logger}
}

// Resolve returns the hero image URL for sessionID and whether it was
// generated rather than the fallback. Concurrent calls for one session share
// a single generation request. A generation that outlasts the wait keeps
// running and fills the cache for the next call.
func (h *HeroLoader) Resolve(ctx context.Context, sessionID string) (string, bool) {
	key := cache.HeroKey(sessionID)

	if v, ok := h.lookup(ctx, key); ok {
		return v, true
	}

	ch := h.group.DoChan(key, func() (any, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.Timeout)
		defer cancel()

		// Another flight may have stored it between our miss and now.
		if v, ok := h.lookup(genCtx, key); ok {
			return v, nil
		}

		img := h.images.GenerateMarketingImage(genCtx, h.cfg.Prompt)
		if img == "" {
			return "", nil
		}
		if err := h.cache.Set(genCtx, key, img); err != nil {
			h.logger.WarnContext(ctx, "failed to cache hero image", slog.String("error", err.Error()))
		}
		return img, nil
	})

	wait := time.NewTimer(h.cfg.Wait)
	defer wait.Stop()

	select {
	case res := <-ch:
		if img, _ := res.Val.(string); img != "" {
			return img, true
		}
	case <-wait.C:
		h.logger.InfoContext(ctx, "hero generation still running, serving fallback",
			slog.String("session_id", sessionID),
		)
	case <-ctx.Done():
	}
	return h.cfg.FallbackURL, false
}

func (h *HeroLoader) lookup(ctx context.Context, key string) (string, bool) {
	v, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		h.logger.WarnContext(ctx, "hero cache read failed", slog.String("error", err.Error()))
		return "", false
	}
	return v, ok && v != ""
}
