package domain

// AllCategories is the sentinel category meaning "no filter applied". It is
// always the first entry of a catalog's category list and never the category
// of a product.
const AllCategories = "All Categories"

// Product is a purchasable catalog entry. Products are immutable once the
// catalog is loaded. Prices are whole naira.
type Product struct {
	ID               string  `json:"id" validate:"required"`
	Name             string  `json:"name" validate:"required"`
	Price            int64   `json:"price" validate:"gte=0,lte=1000000000000"`
	Category         string  `json:"category" validate:"required"`
	Image            string  `json:"image" validate:"omitempty,uri"`
	Rating           float64 `json:"rating" validate:"gte=0,lte=5"`
	Reviews          int     `json:"reviews" validate:"gte=0"`
	ShortDescription string  `json:"short_description"`
	FullDescription  string  `json:"full_description,omitempty"`
	IsNew            bool    `json:"is_new,omitempty"`
	IsBestSeller     bool    `json:"is_best_seller,omitempty"`
}
