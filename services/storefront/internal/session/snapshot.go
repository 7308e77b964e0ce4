package session

import "github.com/utafrali/lagosbazaar/services/storefront/internal/domain"

// Snapshot is everything a presentation layer needs to render the
// storefront.
type Snapshot struct {
	SessionID          string            `json:"session_id"`
	View               domain.View       `json:"view"`
	SelectedProduct    *domain.Product   `json:"selected_product,omitempty"`
	ActiveCategory     string            `json:"active_category"`
	Categories         []string          `json:"categories"`
	Products           []domain.Product  `json:"products"`
	CartItems          []domain.CartItem `json:"cart_items"`
	CartItemCount      int               `json:"cart_item_count"`
	CartTotal          int64             `json:"cart_total"`
	CartTotalFormatted string            `json:"cart_total_formatted"`
	CartOpen           bool              `json:"cart_open"`
	AIContent          *domain.AIContent `json:"ai_content,omitempty"`
	AILoading          bool              `json:"ai_loading"`
}

// Snapshot returns a consistent copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	cart := c.cart.Clone()
	s := Snapshot{
		SessionID:      c.id,
		View:           c.nav.View,
		ActiveCategory: c.activeCategory,
		CartOpen:       c.cartOpen,
		AILoading:      c.aiLoading,
	}
	if c.nav.Product != nil {
		p := *c.nav.Product
		s.SelectedProduct = &p
	}
	if c.aiContent != nil {
		aic := *c.aiContent
		s.AIContent = &aic
	}
	c.mu.Unlock()

	s.Categories = c.catalog.Categories()
	s.Products = c.catalog.Filter(s.ActiveCategory)
	s.CartItems = cart.Items
	s.CartItemCount = cart.ItemCount()
	s.CartTotal = cart.TotalAmount()
	s.CartTotalFormatted = domain.FormatNaira(s.CartTotal)
	return s
}
