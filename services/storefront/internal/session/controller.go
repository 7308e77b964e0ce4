// Package session holds per-session storefront state: navigation, cart,
// drawer, selected product and AI content.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/utafrali/lagosbazaar/pkg/errors"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/domain"
)

// DefaultAITimeout bounds a single content generation call.
const DefaultAITimeout = 60 * time.Second

// ProductCatalog is the read side of the catalog the controller browses.
type ProductCatalog interface {
	Categories() []string
	Filter(category string) []domain.Product
}

// ContentGenerator produces marketing copy. A nil result means absent.
type ContentGenerator interface {
	GenerateProductContent(ctx context.Context, productName, category string) *domain.AIContent
}

// EventPublisher receives storefront activity. Errors are logged only.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, sessionID string, cart domain.Cart) error
	PublishCheckoutStarted(ctx context.Context, sessionID string, cart domain.Cart) error
	PublishAIContentGenerated(ctx context.Context, sessionID string, product domain.Product, content domain.AIContent) error
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Catalog   ProductCatalog
	Content   ContentGenerator
	Events    EventPublisher
	Logger    *slog.Logger
	AITimeout time.Duration
}

// Controller owns one session's state. Every mutation runs under mu, so
// concurrent requests see a serial order of whole operations. Gateway calls
// run outside the lock; their results carry the generation token captured at
// request time and are dropped if the token has moved on.
type Controller struct {
	id        string
	catalog   ProductCatalog
	content   ContentGenerator
	events    EventPublisher
	logger    *slog.Logger
	aiTimeout time.Duration

	mu             sync.Mutex
	nav            domain.Navigation
	activeCategory string
	cart           domain.Cart
	cartOpen       bool
	selected       *domain.Product
	aiContent      *domain.AIContent
	aiLoading      bool
	generation     uint64

	inflight sync.WaitGroup
}

// NewController creates the state for session id, starting on HOME with an
// empty cart and no filter.
func NewController(id string, deps Deps) *Controller {
	if deps.AITimeout <= 0 {
		deps.AITimeout = DefaultAITimeout
	}
	if deps.Events == nil {
		deps.Events = noopEvents{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Controller{
		id:             id,
		catalog:        deps.Catalog,
		content:        deps.Content,
		events:         deps.Events,
		logger:         deps.Logger.With(slog.String("session_id", id)),
		aiTimeout:      deps.AITimeout,
		nav:            domain.Home(),
		activeCategory: domain.AllCategories,
	}
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// AddToCart increments p's line or appends it with quantity 1, and opens the
// drawer.
func (c *Controller) AddToCart(ctx context.Context, p domain.Product) {
	c.mu.Lock()
	c.cart.Add(p)
	c.cartOpen = true
	cart := c.cart.Clone()
	c.mu.Unlock()

	c.publishCart(ctx, cart)
}

// RemoveFromCart deletes the line for productID. Unknown ids are a no-op.
func (c *Controller) RemoveFromCart(ctx context.Context, productID string) {
	c.mu.Lock()
	removed := c.cart.Remove(productID)
	cart := c.cart.Clone()
	c.mu.Unlock()

	if removed {
		c.publishCart(ctx, cart)
	}
}

// UpdateQuantity sets the line's quantity to max(1, q+delta). Unknown ids
// are a no-op.
func (c *Controller) UpdateQuantity(ctx context.Context, productID string, delta int) {
	c.mu.Lock()
	found := c.cart.UpdateQuantity(productID, delta)
	cart := c.cart.Clone()
	c.mu.Unlock()

	if found {
		c.publishCart(ctx, cart)
	}
}

// SelectProduct shows p's detail page and resets AI content. Any in-flight
// content request becomes stale.
func (c *Controller) SelectProduct(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selected = &p
	c.aiContent = nil
	c.aiLoading = false
	c.generation++
	c.nav = domain.ProductDetails(p)
}

// SetCategoryFilter sets the active category. domain.AllCategories clears
// the filter.
func (c *Controller) SetCategoryFilter(category string) {
	c.mu.Lock()
	c.activeCategory = category
	c.mu.Unlock()
}

// ActiveCategory returns the current filter.
func (c *Controller) ActiveCategory() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeCategory
}

// FilteredProducts returns the catalog products matching the active
// category, in catalog order.
func (c *Controller) FilteredProducts() []domain.Product {
	return c.catalog.Filter(c.ActiveCategory())
}

// NavigateHome returns to the landing view.
func (c *Controller) NavigateHome() {
	c.mu.Lock()
	c.nav = domain.Home()
	c.mu.Unlock()
}

// NavigateBack leaves PRODUCT_DETAILS or CHECKOUT for HOME.
func (c *Controller) NavigateBack() {
	c.mu.Lock()
	if c.nav.View != domain.ViewHome {
		c.nav = domain.Home()
	}
	c.mu.Unlock()
}

// OpenCart shows the drawer.
func (c *Controller) OpenCart() {
	c.mu.Lock()
	c.cartOpen = true
	c.mu.Unlock()
}

// CloseCart hides the drawer.
func (c *Controller) CloseCart() {
	c.mu.Lock()
	c.cartOpen = false
	c.mu.Unlock()
}

// Checkout closes the drawer and shows the checkout view in one step. The
// checkout action lives in the drawer, so a closed drawer or an empty cart is
// rejected.
func (c *Controller) Checkout(ctx context.Context) error {
	c.mu.Lock()
	if !c.cartOpen {
		c.mu.Unlock()
		return apperrors.InvalidInput("cart is not open")
	}
	if c.cart.IsEmpty() {
		c.mu.Unlock()
		return apperrors.InvalidInput("cart is empty")
	}
	c.cartOpen = false
	c.navigateToCheckout()
	cart := c.cart.Clone()
	c.mu.Unlock()

	if err := c.events.PublishCheckoutStarted(ctx, c.id, cart); err != nil {
		c.logger.WarnContext(ctx, "failed to publish checkout event", slog.String("error", err.Error()))
	}
	return nil
}

// navigateToCheckout must be called with mu held.
func (c *Controller) navigateToCheckout() {
	c.nav = domain.Checkout()
}

// RequestAIContent starts generating copy for the selected product. It
// reports false without doing anything when no product is selected, a
// request is already loading, or content is already present. The call
// returns immediately; the result is applied when the gateway answers.
func (c *Controller) RequestAIContent(ctx context.Context) bool {
	c.mu.Lock()
	if c.selected == nil || c.aiLoading || c.aiContent != nil {
		c.mu.Unlock()
		return false
	}
	c.aiLoading = true
	token := c.generation
	product := *c.selected
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()

		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.aiTimeout)
		defer cancel()

		content := c.content.GenerateProductContent(callCtx, product.Name, product.Category)
		c.applyAIContent(callCtx, token, product, content)
	}()
	return true
}

func (c *Controller) applyAIContent(ctx context.Context, token uint64, product domain.Product, content *domain.AIContent) {
	c.mu.Lock()
	if token != c.generation {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "discarding stale ai content",
			slog.String("product_id", product.ID),
		)
		return
	}
	c.aiLoading = false
	if content != nil {
		c.aiContent = content
	}
	c.mu.Unlock()

	if content == nil {
		return
	}
	if err := c.events.PublishAIContentGenerated(ctx, c.id, product, *content); err != nil {
		c.logger.WarnContext(ctx, "failed to publish ai content event", slog.String("error", err.Error()))
	}
}

// Wait blocks until every in-flight AI request has finished.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// CartTotal returns Σ price × quantity.
func (c *Controller) CartTotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.TotalAmount()
}

// CartItemCount returns Σ quantity.
func (c *Controller) CartItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.ItemCount()
}

func (c *Controller) publishCart(ctx context.Context, cart domain.Cart) {
	if err := c.events.PublishCartUpdated(ctx, c.id, cart); err != nil {
		c.logger.WarnContext(ctx, "failed to publish cart event", slog.String("error", err.Error()))
	}
}

type noopEvents struct{}

func (noopEvents) PublishCartUpdated(context.Context, string, domain.Cart) error     { return nil }
func (noopEvents) PublishCheckoutStarted(context.Context, string, domain.Cart) error { return nil }
func (noopEvents) PublishAIContentGenerated(context.Context, string, domain.Product, domain.AIContent) error {
	return nil
}
