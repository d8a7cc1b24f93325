package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"kaspas-storefront/internal/cart"
	"kaspas-storefront/internal/domain"
	"kaspas-storefront/internal/session"
)

// CheckoutService turns the local cart into an order.
type CheckoutService struct {
	orders    *OrderService
	cart      *cart.Store
	session   *session.Reader
	validator *validator.Validate
	logger    *slog.Logger
}

func NewCheckoutService(orders *OrderService, c *cart.Store, sess *session.Reader, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		cart:      c,
		session:   sess,
		validator: validator.New(),
		logger:    logger,
	}
}

// PlaceOrder validates form against the current session, submits the cart
// and empties it once the API has accepted the order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, form domain.CheckoutForm) (*domain.Order, error) {
	st, err := s.session.Current(ctx)
	if err != nil {
		return nil, err
	}

	form.Authenticated = st.IsAuthenticated
	if err := s.validator.Struct(form); err != nil {
		return nil, invalid(err)
	}
	if err := s.validator.Var(form.Email, "omitempty,email"); err != nil {
		return nil, invalid(fmt.Errorf("email: %w", err))
	}

	lines := s.cart.Items()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			ProductID: line.ID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}

	order, err := s.orders.Create(ctx, &domain.CreateOrderRequest{CheckoutForm: form, Items: items})
	if err != nil {
		return nil, err
	}

	if err := s.cart.Clear(ctx); err != nil {
		s.logger.Warn("order placed but cart not cleared", "order_id", order.ID, "error", err)
	}
	return order, nil
}
