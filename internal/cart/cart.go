package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kaspas-storefront/internal/domain"
	"kaspas-storefront/internal/storage"
)

const storageKey = "cart"

var ErrItemNotFound = errors.New("item not in cart")

// Store is the locally persisted cart. Every mutation is written through to
// storage before it returns.
type Store struct {
	mu      sync.Mutex
	items   []domain.LineItem
	storage storage.Storage
	logger  *slog.Logger
}

// Open loads the persisted cart. A missing or unreadable entry starts an
// empty cart.
func Open(ctx context.Context, s storage.Storage, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Store{storage: s, logger: logger}

	raw, err := s.Get(ctx, storageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &c.items); err != nil {
		logger.Warn("discarding unreadable cart", "error", err)
		c.items = nil
	}
	return c, nil
}

// Add puts one unit of product in the cart.
func (c *Store) Add(ctx context.Context, product domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.snapshot()
	if i := indexOf(next, product.ID); i >= 0 {
		next[i].Quantity++
	} else {
		next = append(next, domain.LineItem{
			ID:       product.ID,
			Title:    product.Title,
			Price:    product.Price,
			Quantity: 1,
		})
	}
	return c.commit(ctx, next)
}

func (c *Store) Increase(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.snapshot()
	i := indexOf(next, id)
	if i < 0 {
		return ErrItemNotFound
	}
	next[i].Quantity++
	return c.commit(ctx, next)
}

// Decrease takes one unit away; the last unit removes the line.
func (c *Store) Decrease(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.snapshot()
	i := indexOf(next, id)
	if i < 0 {
		return ErrItemNotFound
	}
	if next[i].Quantity <= 1 {
		next = append(next[:i], next[i+1:]...)
	} else {
		next[i].Quantity--
	}
	return c.commit(ctx, next)
}

func (c *Store) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.snapshot()
	if i := indexOf(next, id); i >= 0 {
		next = append(next[:i], next[i+1:]...)
	}
	return c.commit(ctx, next)
}

func (c *Store) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.storage.Delete(ctx, storageKey); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	c.items = nil
	return nil
}

// Items returns a copy of the line items in insertion order.
func (c *Store) Items() []domain.LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Store) Subtotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total float64
	for _, item := range c.items {
		total += item.Total()
	}
	return total
}

func (c *Store) TotalQuantity() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

func (c *Store) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

func (c *Store) snapshot() []domain.LineItem {
	out := make([]domain.LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// commit persists next and only then makes it the current state.
func (c *Store) commit(ctx context.Context, next []domain.LineItem) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := c.storage.Set(ctx, storageKey, string(data)); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	c.items = next
	return nil
}

func indexOf(items []domain.LineItem, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
