package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/lagosbazaar/pkg/httputil"
	"github.com/utafrali/lagosbazaar/pkg/pagination"
	"github.com/utafrali/lagosbazaar/pkg/validator"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/domain"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/session"
)

// Catalog is the catalog surface the handlers read.
type Catalog interface {
	Products() []domain.Product
	Categories() []string
	Product(id string) (domain.Product, error)
	Filter(category string) []domain.Product
	ResolveCategory(v string) (string, bool)
}

// Sessions hands out the controller for a session id. Admit registers an id
// and fails when no new session can be held.
type Sessions interface {
	Admit(ctx context.Context, id string) error
	Get(id string) *session.Controller
}

// HeroResolver resolves the hero image for a session.
type HeroResolver interface {
	Resolve(ctx context.Context, sessionID string) (string, bool)
}

// StorefrontHandler serves the storefront API.
type StorefrontHandler struct {
	catalog  Catalog
	sessions Sessions
	hero     HeroResolver
	logger   *slog.Logger
}

// NewStorefrontHandler creates the storefront HTTP handler.
func NewStorefrontHandler(catalog Catalog, sessions Sessions, hero HeroResolver, logger *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		catalog:  catalog,
		sessions: sessions,
		hero:     hero,
		logger:   logger,
	}
}

// --- Request DTOs ---

// SetFilterRequest selects a category by name or slug.
type SetFilterRequest struct {
	Category string `json:"category" validate:"required"`
}

// AddItemRequest adds one unit of a catalog product to the cart.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// UpdateQuantityRequest changes a cart line's quantity by Delta. Delta is
// bounded by domain.MaxQuantity in either direction.
type UpdateQuantityRequest struct {
	Delta *int `json:"delta" validate:"required,min=-9999,max=9999"`
}

// HeroResponse is the body of GET /hero.
type HeroResponse struct {
	URL       string `json:"url"`
	Generated bool   `json:"generated"`
}

// AIContentResponse is the body of POST /ai-content.
type AIContentResponse struct {
	Started bool             `json:"started"`
	State   session.Snapshot `json:"state"`
}

func (h *StorefrontHandler) controller(r *http.Request) *session.Controller {
	return h.sessions.Get(sessionIDFromContext(r.Context()))
}

// decode reads an optional JSON body. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	err := validator.DecodeAndValidate(r, dst)
	if errors.Is(err, io.EOF) {
		return validator.Validate(dst)
	}
	return err
}

// --- Catalog ---

// GetState handles GET /state.
func (h *StorefrontHandler) GetState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.controller(r).Snapshot())
}

// ListProducts handles GET /products. Without ?category= the session's
// active filter applies.
func (h *StorefrontHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)

	var products []domain.Product
	if v := r.URL.Query().Get("category"); v != "" {
		category, ok := h.catalog.ResolveCategory(v)
		if !ok {
			category = v
		}
		products = h.catalog.Filter(category)
	} else {
		products = ctrl.FilteredProducts()
	}

	httputil.WriteData(w, http.StatusOK, pagination.Paginate(products, pagination.FromRequest(r)))
}

// GetProduct handles GET /products/{productId}.
func (h *StorefrontHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Product(chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// ListCategories handles GET /categories.
func (h *StorefrontHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.catalog.Categories())
}

// SetFilter handles PUT /filter.
func (h *StorefrontHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req SetFilterRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	category, ok := h.catalog.ResolveCategory(req.Category)
	if !ok {
		category = req.Category
	}

	ctrl := h.controller(r)
	ctrl.SetCategoryFilter(category)
	httputil.WriteData(w, http.StatusOK, ctrl.Snapshot())
}

// SelectProduct handles POST /products/{productId}/select.
func (h *StorefrontHandler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Product(chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	ctrl := h.controller(r)
	ctrl.SelectProduct(p)
	httputil.WriteData(w, http.StatusOK, ctrl.Snapshot())
}

// RequestAIContent handles POST /ai-content. Generation continues after the
// response; clients poll GET /state.
func (h *StorefrontHandler) RequestAIContent(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	started := ctrl.RequestAIContent(r.Context())

	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	httputil.WriteData(w, status, AIContentResponse{Started: started, State: ctrl.Snapshot()})
}

// GetHero handles GET /hero.
func (h *StorefrontHandler) GetHero(w http.ResponseWriter, r *http.Request) {
	url, generated := h.hero.Resolve(r.Context(), sessionIDFromContext(r.Context()))
	httputil.WriteData(w, http.StatusOK, HeroResponse{URL: url, Generated: generated})
}

// --- Cart ---

// AddItem handles POST /cart/items.
func (h *StorefrontHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	p, err := h.catalog.Product(req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	ctrl := h.controller(r)
	ctrl.AddToCart(r.Context(), p)
	httputil.WriteData(w, http.StatusOK, ctrl.Snapshot())
}

// UpdateItemQuantity handles PATCH /cart/items/{productId}.
func (h *StorefrontHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	ctrl := h.controller(r)
	ctrl.UpdateQuantity(r.Context(), chi.URLParam(r, "productId"), *req.Delta)
	httputil.WriteData(w, http.StatusOK, ctrl.Snapshot())
}

// RemoveItem handles DELETE /cart/items/{productId}.
func (h *StorefrontHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	ctrl.RemoveFromCart(r.Context(), chi.URLParam(r, "productId"))
	httputil.WriteData(w, http.StatusOK, ctrl.Snapshot())
}

// OpenCart handles POST /cart/open.
func (h *StorefrontHandler) OpenCart(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	ctrl.OpenCart()
	httputil.WriteData(w, http.StatusOK, ctrl.Snapshot())
}

// CloseCart handles POST /cart/close.
func (h *StorefrontHandler) CloseCart(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	ctrl.CloseCart()
	httputil.WriteData(w, http.StatusOK, ctrl.Snapshot())
}

// Checkout handles POST /checkout.
func (h *StorefrontHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	if err := ctrl.Checkout(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, ctrl.Snapshot())
}

// --- Navigation ---

// NavigateHome handles POST /navigate/home.
func (h *StorefrontHandler) NavigateHome(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	ctrl.NavigateHome()
	httputil.WriteData(w, http.StatusOK, ctrl.Snapshot())
}

// NavigateBack handles POST /navigate/back.
func (h *StorefrontHandler) NavigateBack(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	ctrl.NavigateBack()
	httputil.WriteData(w, http.StatusOK, ctrl.Snapshot())
}
