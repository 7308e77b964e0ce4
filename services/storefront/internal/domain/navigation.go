package domain

// View is the storefront page currently shown.
type View string

const (
	ViewHome           View = "HOME"
	ViewProductDetails View = "PRODUCT_DETAILS"
	ViewCheckout       View = "CHECKOUT"
)

// Navigation is the current view. Product is set only for
// ViewProductDetails.
type Navigation struct {
	View    View     `json:"view"`
	Product *Product `json:"product,omitempty"`
}

// Home returns the landing view.
func Home() Navigation {
	return Navigation{View: ViewHome}
}

// ProductDetails returns the detail view for p.
func ProductDetails(p Product) Navigation {
	return Navigation{View: ViewProductDetails, Product: &p}
}

// Checkout returns the checkout view.
func Checkout() Navigation {
	return Navigation{View: ViewCheckout}
}
