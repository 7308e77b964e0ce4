package domain

import "math"

// MaxQuantity caps a single cart line. Together with MaxPrice it keeps every
// subtotal far inside int64.
const MaxQuantity = 9999

// CartItem is a product line in the cart. Quantity is always at least 1.
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// Subtotal returns price × quantity.
func (i CartItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Cart is an ordered list of cart items. Items keep first-add order and no
// two items share a product ID. The zero value is an empty cart.
type Cart struct {
	Items []CartItem `json:"items"`
}

// Add increments the quantity of p's existing line by one, or appends a new
// line with quantity 1.
func (c *Cart) Add(p Product) {
	if i := c.FindItemIndex(p.ID); i >= 0 {
		if c.Items[i].Quantity < MaxQuantity {
			c.Items[i].Quantity++
		}
		return
	}
	c.Items = append(c.Items, CartItem{Product: p, Quantity: 1})
}

// Remove deletes the line for productID. It reports whether a line existed.
func (c *Cart) Remove(productID string) bool {
	i := c.FindItemIndex(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// UpdateQuantity adds delta to the line's quantity, never going below 1 or
// above MaxQuantity.
// It reports whether a line for productID existed.
func (c *Cart) UpdateQuantity(productID string, delta int) bool {
	i := c.FindItemIndex(productID)
	if i < 0 {
		return false
	}
	c.Items[i].Quantity = clampQuantity(c.Items[i].Quantity, delta)
	return true
}

// clampQuantity returns q+delta bounded to [1, MaxQuantity] without
// overflowing.
func clampQuantity(q, delta int) int {
	switch {
	case delta > MaxQuantity-q:
		return MaxQuantity
	case delta < 1-q:
		return 1
	default:
		return q + delta
	}
}

// TotalAmount returns Σ price × quantity in whole naira. The sum saturates
// at math.MaxInt64 instead of wrapping.
func (c *Cart) TotalAmount() int64 {
	var total int64
	for _, item := range c.Items {
		sub := item.Subtotal()
		if sub > math.MaxInt64-total {
			return math.MaxInt64
		}
		total += sub
	}
	return total
}

// ItemCount returns Σ quantity.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItemIndex returns the index of the line for productID, or -1.
func (c *Cart) FindItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no item storage with c.
func (c *Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}
