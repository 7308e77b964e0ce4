package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/lagosbazaar/pkg/health"
	"github.com/utafrali/lagosbazaar/pkg/httputil"
	"github.com/utafrali/lagosbazaar/pkg/middleware"
	"github.com/utafrali/lagosbazaar/pkg/pagination"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/cache/memory"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/catalog"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/domain"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/session"
)

// ============================================================================
// Fixtures
// ============================================================================

type staticContent struct{}

func (staticContent) GenerateProductContent(_ context.Context, name, _ string) *domain.AIContent {
	return &domain.AIContent{
		SalesPitch:  "Correct " + name + "!",
		KeyFeatures: []string{"a", "b", "c"},
		SEOTags:     []string{"1", "2", "3", "4", "5"},
	}
}

type staticHero struct{}

func (staticHero) Resolve(_ context.Context, sessionID string) (string, bool) {
	return "data:image/png;base64," + sessionID, true
}

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

type testServer struct {
	handler  http.Handler
	registry *session.Registry
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	return newCappedTestServer(t, limiter, 0)
}

func newCappedTestServer(t *testing.T, limiter *middleware.RateLimiter, maxSessions int) *testServer {
	t.Helper()
	logger := discardLogger()

	cat, err := catalog.New([]domain.Product{
		{ID: "p1", Name: "Tecno Camon", Price: 5000, Category: "Phones & Tablets"},
		{ID: "p2", Name: "Ankara Dress", Price: 2500, Category: "Fashion"},
		{ID: "p3", Name: "Galaxy Tab", Price: 12000, Category: "Phones & Tablets"},
	}, []string{domain.AllCategories, "Phones & Tablets", "Fashion"})
	require.NoError(t, err)

	registry := session.NewRegistry(func(id string) *session.Controller {
		return session.NewController(id, session.Deps{
			Catalog: cat,
			Content: staticContent{},
			Logger:  logger,
		})
	}, memory.New(time.Hour), time.Hour, maxSessions, logger)
	t.Cleanup(registry.Close)

	h := NewStorefrontHandler(cat, registry, staticHero{}, logger)
	router := NewRouter(h, health.NewHandler(), RouterConfig{
		CORS:      middleware.DefaultCORSConfig(),
		AILimiter: limiter,
	}, logger)

	return &testServer{handler: router, registry: registry}
}

func (s *testServer) do(t *testing.T, method, path, sid string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, "/api/v1/storefront"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sid != "" {
		req.Header.Set(middleware.HeaderSessionID, sid)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func snapshotOf(t *testing.T, env envelope) session.Snapshot {
	t.Helper()
	var s session.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

// ============================================================================
// Session handling
// ============================================================================

func TestSession_IssuedWhenAbsent(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodGet, "/state", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sid := rec.Header().Get(middleware.HeaderSessionID)
	_, err := uuid.Parse(sid)
	require.NoError(t, err)

	s := snapshotOf(t, env)
	assert.Equal(t, sid, s.SessionID)
	assert.Equal(t, domain.ViewHome, s.View)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestSession_EchoedAndIsolated(t *testing.T) {
	srv := newTestServer(t, nil)
	a, b := uuid.NewString(), uuid.NewString()

	rec, _ := srv.do(t, http.MethodPost, "/cart/items", a, AddItemRequest{ProductID: "p1"})
	assert.Equal(t, a, rec.Header().Get(middleware.HeaderSessionID))

	_, env := srv.do(t, http.MethodGet, "/state", b, nil)
	assert.Empty(t, snapshotOf(t, env).CartItems)
}

func TestSession_NewSessionsRefusedAtCapacity(t *testing.T) {
	srv := newCappedTestServer(t, nil, 2)
	first, second := uuid.NewString(), uuid.NewString()

	for _, sid := range []string{first, second} {
		rec, _ := srv.do(t, http.MethodGet, "/state", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := srv.do(t, http.MethodGet, "/state", uuid.NewString(), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
	assert.Equal(t, 2, srv.registry.Len())

	// Existing sessions are unaffected, and catalog reads need no session slot.
	rec, _ = srv.do(t, http.MethodPost, "/cart/items", first, AddItemRequest{ProductID: "p1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = srv.do(t, http.MethodGet, "/categories", uuid.NewString(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_MalformedIDReplaced(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, _ := srv.do(t, http.MethodGet, "/state", "../../etc", nil)
	assert.NotEqual(t, "../../etc", rec.Header().Get(middleware.HeaderSessionID))
}

// ============================================================================
// Cart
// ============================================================================

func TestCart_AddTwiceOpensDrawer(t *testing.T) {
	srv := newTestServer(t, nil)
	sid := uuid.NewString()

	srv.do(t, http.MethodPost, "/cart/items", sid, AddItemRequest{ProductID: "p1"})
	rec, env := srv.do(t, http.MethodPost, "/cart/items", sid, AddItemRequest{ProductID: "p1"})
	require.Equal(t, http.StatusOK, rec.Code)

	s := snapshotOf(t, env)
	require.Len(t, s.CartItems, 1)
	assert.Equal(t, 2, s.CartItems[0].Quantity)
	assert.Equal(t, int64(10000), s.CartTotal)
	assert.Equal(t, "₦10,000", s.CartTotalFormatted)
	assert.True(t, s.CartOpen)
}

func TestCart_AddUnknownProduct(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/cart/items", uuid.NewString(), AddItemRequest{ProductID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestCart_AddValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/cart/items", uuid.NewString(), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "product_id")
}

func TestCart_UpdateAndRemove(t *testing.T) {
	srv := newTestServer(t, nil)
	sid := uuid.NewString()
	srv.do(t, http.MethodPost, "/cart/items", sid, AddItemRequest{ProductID: "p1"})

	delta := 3
	_, env := srv.do(t, http.MethodPatch, "/cart/items/p1", sid, UpdateQuantityRequest{Delta: &delta})
	assert.Equal(t, 4, snapshotOf(t, env).CartItems[0].Quantity)

	delta = -10
	_, env = srv.do(t, http.MethodPatch, "/cart/items/p1", sid, UpdateQuantityRequest{Delta: &delta})
	assert.Equal(t, 1, snapshotOf(t, env).CartItems[0].Quantity)

	rec, env := srv.do(t, http.MethodPatch, "/cart/items/ghost", sid, UpdateQuantityRequest{Delta: &delta})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, snapshotOf(t, env).CartItems, 1)

	rec, _ = srv.do(t, http.MethodDelete, "/cart/items/ghost", sid, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, env = srv.do(t, http.MethodDelete, "/cart/items/p1", sid, nil)
	assert.Empty(t, snapshotOf(t, env).CartItems)
}

func TestCart_UpdateRequiresDelta(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, _ := srv.do(t, http.MethodPatch, "/cart/items/p1", uuid.NewString(), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_UpdateRejectsOutOfRangeDelta(t *testing.T) {
	srv := newTestServer(t, nil)
	sid := uuid.NewString()
	srv.do(t, http.MethodPost, "/cart/items", sid, AddItemRequest{ProductID: "p1"})

	rec, env := srv.do(t, http.MethodPatch, "/cart/items/p1", sid, map[string]any{"delta": int64(math.MaxInt64)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "must be at most 9999", env.Error.Fields["delta"])

	_, env = srv.do(t, http.MethodGet, "/state", sid, nil)
	assert.Equal(t, int64(5000), snapshotOf(t, env).CartTotal)
}

func TestCart_LargestQuantityKeepsTotalExact(t *testing.T) {
	srv := newTestServer(t, nil)
	sid := uuid.NewString()
	srv.do(t, http.MethodPost, "/cart/items", sid, AddItemRequest{ProductID: "p1"})

	delta := domain.MaxQuantity
	for i := 0; i < 2; i++ {
		rec, _ := srv.do(t, http.MethodPatch, "/cart/items/p1", sid, UpdateQuantityRequest{Delta: &delta})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	_, env := srv.do(t, http.MethodGet, "/state", sid, nil)
	snap := snapshotOf(t, env)
	assert.Equal(t, domain.MaxQuantity, snap.CartItems[0].Quantity)
	assert.Equal(t, int64(5000*domain.MaxQuantity), snap.CartTotal)
	assert.Equal(t, "₦49,995,000", snap.CartTotalFormatted)
}

func TestCart_Drawer(t *testing.T) {
	srv := newTestServer(t, nil)
	sid := uuid.NewString()

	_, env := srv.do(t, http.MethodPost, "/cart/open", sid, nil)
	assert.True(t, snapshotOf(t, env).CartOpen)

	_, env = srv.do(t, http.MethodPost, "/cart/close", sid, nil)
	assert.False(t, snapshotOf(t, env).CartOpen)
}

func TestCheckout(t *testing.T) {
	srv := newTestServer(t, nil)
	sid := uuid.NewString()

	rec, env := srv.do(t, http.MethodPost, "/checkout", sid, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	srv.do(t, http.MethodPost, "/cart/items", sid, AddItemRequest{ProductID: "p2"})
	srv.do(t, http.MethodPost, "/cart/close", sid, nil)
	rec, env = srv.do(t, http.MethodPost, "/checkout", sid, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "cart is not open", env.Error.Message)

	srv.do(t, http.MethodPost, "/cart/open", sid, nil)
	rec, env = srv.do(t, http.MethodPost, "/checkout", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	s := snapshotOf(t, env)
	assert.Equal(t, domain.ViewCheckout, s.View)
	assert.False(t, s.CartOpen)

	_, env = srv.do(t, http.MethodPost, "/navigate/back", sid, nil)
	assert.Equal(t, domain.ViewHome, snapshotOf(t, env).View)
}

// ============================================================================
// Catalog and navigation
// ============================================================================

func TestCatalog_Categories(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodGet, "/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	var cats []string
	require.NoError(t, json.Unmarshal(env.Data, &cats))
	assert.Equal(t, []string{domain.AllCategories, "Phones & Tablets", "Fashion"}, cats)
}

func TestCatalog_GetProduct(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodGet, "/products/p2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p domain.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "Ankara Dress", p.Name)

	rec, _ = srv.do(t, http.MethodGet, "/products/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalog_ListProductsFollowsSessionFilter(t *testing.T) {
	srv := newTestServer(t, nil)
	sid := uuid.NewString()

	_, env := srv.do(t, http.MethodPut, "/filter", sid, SetFilterRequest{Category: "phones-and-tablets"})
	assert.Equal(t, "Phones & Tablets", snapshotOf(t, env).ActiveCategory)

	_, env = srv.do(t, http.MethodGet, "/products", sid, nil)
	var page pagination.Result[domain.Product]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "p1", page.Items[0].ID)
	assert.Equal(t, "p3", page.Items[1].ID)
	assert.Equal(t, 2, page.TotalCount)
}

func TestCatalog_ListProductsCategoryOverride(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := srv.do(t, http.MethodGet, "/products?category=Fashion", "", nil)
	var page pagination.Result[domain.Product]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "p2", page.Items[0].ID)

	_, env = srv.do(t, http.MethodGet, "/products?category=toys", "", nil)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Items)
}

func TestCatalog_ListProductsPaginated(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := srv.do(t, http.MethodGet, "/products?per_page=2&page=2", "", nil)
	var page pagination.Result[domain.Product]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "p3", page.Items[0].ID)
	assert.True(t, page.HasPrev)
}

func TestNavigation_SelectAndHome(t *testing.T) {
	srv := newTestServer(t, nil)
	sid := uuid.NewString()

	rec, env := srv.do(t, http.MethodPost, "/products/p1/select", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s := snapshotOf(t, env)
	assert.Equal(t, domain.ViewProductDetails, s.View)
	require.NotNil(t, s.SelectedProduct)
	assert.Equal(t, "p1", s.SelectedProduct.ID)

	rec, _ = srv.do(t, http.MethodPost, "/products/ghost/select", sid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, env = srv.do(t, http.MethodPost, "/navigate/home", sid, nil)
	assert.Equal(t, domain.ViewHome, snapshotOf(t, env).View)
}

// ============================================================================
// Generative endpoints
// ============================================================================

func TestAIContent_Flow(t *testing.T) {
	srv := newTestServer(t, nil)
	sid := uuid.NewString()

	rec, env := srv.do(t, http.MethodPost, "/ai-content", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AIContentResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.False(t, resp.Started)

	srv.do(t, http.MethodPost, "/products/p1/select", sid, nil)
	rec, env = srv.do(t, http.MethodPost, "/ai-content", sid, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.Started)

	srv.registry.Get(sid).Wait()

	_, env = srv.do(t, http.MethodGet, "/state", sid, nil)
	s := snapshotOf(t, env)
	require.NotNil(t, s.AIContent)
	assert.Equal(t, "Correct Tecno Camon!", s.AIContent.SalesPitch)
	assert.False(t, s.AILoading)
}

func TestHero(t *testing.T) {
	srv := newTestServer(t, nil)
	sid := uuid.NewString()

	rec, env := srv.do(t, http.MethodGet, "/hero", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var hero HeroResponse
	require.NoError(t, json.Unmarshal(env.Data, &hero))
	assert.Equal(t, "data:image/png;base64,"+sid, hero.URL)
	assert.True(t, hero.Generated)
}

func TestAIEndpointsRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(0.001, 1, time.Minute, discardLogger())
	t.Cleanup(limiter.Close)
	srv := newTestServer(t, limiter)
	sid := uuid.NewString()

	rec, _ := srv.do(t, http.MethodGet, "/hero", sid, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = srv.do(t, http.MethodPost, "/ai-content", sid, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = srv.do(t, http.MethodGet, "/state", sid, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// Middleware
// ============================================================================

func TestContentTypeJSON_RejectsOtherTypes(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/storefront/cart/items", bytes.NewBufferString("product_id=p1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHealthLive(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
