package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"kaspas-storefront/internal/app"
	"kaspas-storefront/internal/config"
	"kaspas-storefront/internal/domain"
	"kaspas-storefront/internal/service"
)

const usage = `usage: storefront <command> [args]

commands:
  login <email> <password>
  logout
  whoami
  menu [search]
  cart
  add <product-id>
  checkout <address> <city> <contact-number>
  orders [status]`

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute runs one command and returns the process exit code. Storage is
// closed before it returns on every path.
func execute(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.WithLoginRedirect(func(path string, reason error) {
		log.Printf("Session expired, sign in again at %s: %v", path, reason)
	}))
	if err != nil {
		log.Printf("Failed to start: %v", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("Failed to close storage: %v", err)
		}
	}()

	if err := run(ctx, a, args[0], args[1:]); err != nil {
		log.Printf("%s: %v", args[0], err)
		return 1
	}
	return 0
}

func run(ctx context.Context, a *app.App, cmd string, args []string) error {
	switch cmd {
	case "login":
		if len(args) != 2 {
			return errors.New("expected <email> <password>")
		}
		result, err := a.Auth.Login(ctx, &domain.LoginRequest{Email: args[0], Password: args[1]})
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s, landing on %s\n", result.User.FullName(), result.Landing)

	case "logout":
		if err := a.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Signed out")

	case "whoami":
		st, err := a.Session.Current(ctx)
		if err != nil {
			return err
		}
		if !st.IsAuthenticated {
			fmt.Println("Not signed in")
			return nil
		}
		fmt.Printf("%s <%s> role=%s token expires %s\n", st.User.FullName(), st.User.Email, st.User.Role, st.AccessExpiresAt.Format("2006-01-02 15:04"))

	case "menu":
		q := service.ProductQuery{Page: 1, Limit: 20}
		if len(args) > 0 {
			q.Search = strings.Join(args, " ")
		}
		menu, err := a.Catalog.Menu(ctx, q)
		if err != nil {
			return err
		}
		names := make(map[string]string, len(menu.Categories))
		for _, c := range menu.Categories {
			names[c.ID] = c.Name
		}
		for _, p := range menu.Products.Products {
			fmt.Printf("%-26s %-30s %-12s %8.2f\n", p.ID, p.Title, names[p.Category], p.Price)
		}

	case "cart":
		for _, item := range a.Cart.Items() {
			fmt.Printf("%-26s %-30s x%-3d %8.2f\n", item.ID, item.Title, item.Quantity, item.Total())
		}
		fmt.Printf("Subtotal: %.2f\n", a.Cart.Subtotal())

	case "add":
		if len(args) != 1 {
			return errors.New("expected <product-id>")
		}
		product, err := findProduct(ctx, a, args[0])
		if err != nil {
			return err
		}
		if err := a.Cart.Add(ctx, *product); err != nil {
			return err
		}
		fmt.Printf("Added %s, %d items in cart\n", product.Title, a.Cart.TotalQuantity())

	case "checkout":
		if len(args) != 3 {
			return errors.New("expected <address> <city> <contact-number>")
		}
		form := domain.CheckoutForm{Address: args[0], City: args[1], ContactNumber: args[2]}
		if st, err := a.Session.Current(ctx); err == nil && st.User != nil {
			form.FirstName, form.LastName, form.Email = st.User.FirstName, st.User.LastName, st.User.Email
		}
		order, err := a.Checkout.PlaceOrder(ctx, form)
		if err != nil {
			return err
		}
		fmt.Printf("Order %s placed, total %.2f\n", order.ID, order.TotalAmount)

	case "orders":
		q := service.OrderQuery{Page: 1, Limit: 20}
		if len(args) > 0 {
			q.Status = domain.OrderStatus(args[0])
		}
		page, err := a.Orders.UserOrders(ctx, q)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(page)

	default:
		return fmt.Errorf("unknown command\n%s", usage)
	}
	return nil
}

func findProduct(ctx context.Context, a *app.App, id string) (*domain.Product, error) {
	for page := 1; ; page++ {
		result, err := a.Catalog.Products(ctx, service.ProductQuery{Page: page, Limit: 50})
		if err != nil {
			return nil, err
		}
		for i := range result.Products {
			if result.Products[i].ID == id {
				return &result.Products[i], nil
			}
		}
		if len(result.Products) == 0 || page >= result.Pagination.Pages {
			return nil, fmt.Errorf("product %s not found", id)
		}
	}
}
