package domain

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderShipped   OrderStatus = "Shipped"
	OrderDelivered OrderStatus = "Delivered"
	OrderCancelled OrderStatus = "Cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type OrderItem struct {
	ProductID string  `json:"prodId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// CheckoutForm carries the contact and delivery details collected at
// checkout. Name and email are only required from guests.
type CheckoutForm struct {
	FirstName     string `json:"firstName" validate:"required_without=Authenticated"`
	LastName      string `json:"lastName" validate:"required_without=Authenticated"`
	Email         string `json:"email" validate:"required_without=Authenticated"`
	Address       string `json:"address" validate:"required"`
	City          string `json:"city" validate:"required"`
	ContactNumber string `json:"contactNumber" validate:"required"`
	Notes         string `json:"notes,omitempty"`

	Authenticated bool `json:"-"`
}

type CreateOrderRequest struct {
	CheckoutForm
	Items []OrderItem `json:"items"`
}

type Order struct {
	ID            string      `json:"_id"`
	Items         []OrderItem `json:"items"`
	TotalAmount   float64     `json:"totalAmount"`
	Status        OrderStatus `json:"status"`
	PaymentStatus string      `json:"paymentStatus,omitempty"`
	Address       string      `json:"address"`
	City          string      `json:"city"`
	ContactNumber string      `json:"contactNumber"`
	CreatedAt     time.Time   `json:"createdAt"`
}

type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

type Dashboard struct {
	TotalUsers    int     `json:"totalUsers"`
	TotalOrders   int     `json:"totalOrders"`
	TotalProducts int     `json:"totalProducts"`
	TotalRevenue  float64 `json:"totalRevenue"`
	PendingOrders int     `json:"pendingOrders"`
}
