package domain

// CartItem represents a single item in the cart. At most one CartItem exists
// per product id; the server merges duplicates by increasing quantity.
type CartItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// Subtotal returns unit price times quantity (in cents). It is always
// derived, never stored.
func (i CartItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Cart holds the items pending purchase. Totals are recomputed from the
// items on every read so they can never drift from the item list.
type Cart struct {
	Items []CartItem `json:"items"`
}

// Total returns the sum of item subtotals in cents.
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// ItemCount returns the total number of units across all items.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FindItemIndex returns the index of the cart item with the given product id,
// or -1 if not present.
func (c *Cart) FindItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Normalize drops items that violate cart invariants: a non-positive quantity
// means the item is not in the cart.
func (c *Cart) Normalize() {
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.Quantity >= 1 {
			kept = append(kept, item)
		}
	}
	c.Items = kept
}

// Clone returns a deep copy so callers can hold a snapshot that later
// mutations cannot touch.
func (c *Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}
