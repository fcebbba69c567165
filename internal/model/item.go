package model

// Product is a catalog entry.
type Product struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Image       string  `json:"image,omitempty"`
	Category    string  `json:"category,omitempty"`
	Stock       int     `json:"stock"`
}

// Item is a cart line or wishlist entry. ProductID is resolved when the item
// is ingested, whatever shape the API returned it in.
type Item struct {
	ID        string   `json:"_id,omitempty"`
	ProductID string   `json:"productId"`
	Product   *Product `json:"product,omitempty"`
	Quantity  int      `json:"quantity,omitempty"`
}

// Subtotal is the line price, or zero when the product is not denormalized.
func (i Item) Subtotal() float64 {
	if i.Product == nil {
		return 0
	}
	qty := i.Quantity
	if qty <= 0 {
		qty = 1
	}
	return i.Product.Price * float64(qty)
}
