package domain

// LineItem is one distinct product in the cart.
type LineItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (l LineItem) Total() float64 {
	return l.Price * float64(l.Quantity)
}
