package apitest

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"kaspas-storefront/internal/domain"
	"kaspas-storefront/pkg/jwt"
	"kaspas-storefront/pkg/response"
)

func (s *Server) routes(r *mux.Router) {
	r.Use(s.logRequests)

	r.HandleFunc("/user/register", s.register).Methods("POST")
	r.HandleFunc("/user/login", s.login).Methods("POST")
	r.HandleFunc("/user/recreateAccessToken", s.recreateAccessToken).Methods("POST")
	r.HandleFunc("/user/verify-email/{token}", s.verifyEmail).Methods("GET")
	r.HandleFunc("/user/logout", s.requireAuth(s.logout)).Methods("POST")
	r.HandleFunc("/user/getProfile", s.requireAuth(s.getProfile)).Methods("GET")
	r.HandleFunc("/user/updateProfile", s.requireAuth(s.updateProfile)).Methods("PUT")
	r.HandleFunc("/user/getAllUsers", s.requireAdmin(s.listUsers)).Methods("GET")

	r.HandleFunc("/category/getAllCategories", s.listCategories).Methods("GET")
	r.HandleFunc("/category/create", s.requireAdmin(s.createCategory)).Methods("POST")
	r.HandleFunc("/category/delete/{id}", s.requireAdmin(s.deleteCategory)).Methods("DELETE")

	r.HandleFunc("/product/getProductsForUser", s.listProducts).Methods("GET")
	r.HandleFunc("/product/create", s.requireAdmin(s.createProduct)).Methods("POST")
	r.HandleFunc("/product/update/{id}", s.requireAdmin(s.updateProduct)).Methods("PUT")
	r.HandleFunc("/product/delete/{id}", s.requireAdmin(s.deleteProduct)).Methods("DELETE")

	r.HandleFunc("/order/create", s.optionalAuth(s.createOrder)).Methods("POST")
	r.HandleFunc("/order/getUserOrders", s.requireAuth(s.userOrders)).Methods("GET")
	r.HandleFunc("/order/getAllOrders", s.requireAdmin(s.allOrders)).Methods("GET")
	r.HandleFunc("/order/updateStatus/{id}", s.requireAdmin(s.updateOrderStatus)).Methods("PATCH")

	r.HandleFunc("/analytics/dashboard", s.requireAdmin(s.dashboard)).Methods("GET")
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		response.InternalError(w, "Failed to hash password")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[req.Email]; exists {
		response.BadRequest(w, "User already exists")
		return
	}

	acc := &account{
		user: domain.User{
			ID:        uuid.NewString(),
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Role:      domain.RoleUser,
			CreatedAt: time.Now(),
		},
		passwordHash: hashed,
		verifyToken:  uuid.NewString(),
	}
	s.accounts[req.Email] = acc

	response.Created(w, "User registered successfully. Please verify your email.", map[string]interface{}{"user": acc.user})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[req.Email]
	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)) != nil {
		response.Unauthorized(w, "Invalid credentials")
		return
	}
	if !acc.user.IsVerified {
		response.Forbidden(w, "Please Verify Your Email!")
		return
	}

	creds, err := s.issueLocked(acc.user.ID)
	if err != nil {
		response.InternalError(w, "Failed to generate tokens")
		return
	}

	user := acc.user
	response.JSON(w, http.StatusOK, "Login successful", domain.LoginResponse{Credentials: creds, User: &user})
}

// recreateAccessToken rotates the refresh token and answers at the top
// level, outside the envelope.
func (s *Server) recreateAccessToken(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.refreshCalls, 1)

	s.mu.Lock()
	hold := s.hold
	s.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	var req domain.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		response.BadRequest(w, "Refresh token is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	uid, known := s.refreshTokens[req.RefreshToken]
	claims, err := jwt.ValidateToken(req.RefreshToken, s.secret)
	if s.rejectRefresh || !known || err != nil || claims.Kind != "refresh" {
		response.Unauthorized(w, "Invalid refresh token")
		return
	}
	delete(s.refreshTokens, req.RefreshToken)

	creds, err := s.issueLocked(uid)
	if err != nil {
		response.InternalError(w, "Failed to generate tokens")
		return
	}
	response.Raw(w, http.StatusOK, creds)
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.verifyToken != "" && acc.verifyToken == token {
			acc.user.IsVerified = true
			acc.verifyToken = ""
			response.JSON(w, http.StatusOK, "Email verified successfully", nil)
			return
		}
	}
	response.BadRequest(w, "Invalid or expired verification token")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.logoutCalls, 1)

	var req domain.LogoutRequest
	json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	delete(s.refreshTokens, req.RefreshToken)
	s.mu.Unlock()

	response.JSON(w, http.StatusOK, "Logged out successfully", nil)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	acc := s.accountByID(userID(r))
	if acc == nil {
		response.NotFound(w, "User not found")
		return
	}

	s.mu.Lock()
	user := acc.user
	s.mu.Unlock()
	response.Success(w, map[string]interface{}{"user": user})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	acc := s.accountByID(userID(r))
	if acc == nil {
		response.NotFound(w, "User not found")
		return
	}

	s.mu.Lock()
	if req.Email != acc.user.Email {
		if _, taken := s.accounts[req.Email]; taken {
			s.mu.Unlock()
			response.BadRequest(w, "Email already in use")
			return
		}
		delete(s.accounts, acc.user.Email)
		s.accounts[req.Email] = acc
	}
	acc.user.FirstName = req.FirstName
	acc.user.LastName = req.LastName
	acc.user.Email = req.Email
	user := acc.user
	s.mu.Unlock()

	response.JSON(w, http.StatusOK, "Profile updated successfully", map[string]interface{}{"user": user})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := make([]domain.User, 0, len(s.accounts))
	for _, acc := range s.accounts {
		users = append(users, acc.user)
	}
	s.mu.Unlock()

	response.Success(w, map[string]interface{}{"users": users})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	categories := append([]domain.Category{}, s.categories...)
	s.mu.Unlock()

	response.Success(w, map[string]interface{}{"categories": categories})
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var c domain.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := s.validator.Struct(c); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	s.mu.Lock()
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	s.categories = append(s.categories, c)
	s.mu.Unlock()

	response.Created(w, "Category created successfully", map[string]interface{}{"category": c})
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.categories {
		if c.ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			response.JSON(w, http.StatusOK, "Category deleted successfully", nil)
			return
		}
	}
	response.NotFound(w, "Category not found")
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := pageParams(q.Get("page"), q.Get("limit"))
	search := strings.ToLower(q.Get("search"))
	category := q.Get("category")
	featuredOnly := q.Get("isFeatured") == "true"

	s.mu.Lock()
	var matched []domain.Product
	for _, p := range s.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		if featuredOnly && !p.IsFeatured {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.Unlock()

	lo, hi, pagination := paginate(len(matched), page, limit)
	response.Success(w, domain.ProductPage{
		Products:   append([]domain.Product{}, matched[lo:hi]...),
		Pagination: pagination,
	})
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		response.BadRequest(w, "Invalid multipart body")
		return
	}

	price, _ := strconv.ParseFloat(r.FormValue("price"), 64)
	stock, _ := strconv.Atoi(r.FormValue("stock"))
	input := domain.ProductInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       price,
		Category:    r.FormValue("category"),
		IsFeatured:  r.FormValue("isFeatured") == "true",
		Stock:       stock,
	}
	if err := s.validator.Struct(input); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		response.BadRequest(w, "Product image is required")
		return
	}
	file.Close()

	p := s.AddProduct(domain.Product{
		Title:       input.Title,
		Description: input.Description,
		Price:       input.Price,
		Image:       "/uploads/" + header.Filename,
		Category:    input.Category,
		IsFeatured:  input.IsFeatured,
		Stock:       input.Stock,
	})
	response.Created(w, "Product created successfully", map[string]interface{}{"product": p})
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := s.validator.Struct(input); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.products {
		p := &s.products[i]
		if p.ID != id {
			continue
		}
		p.Title = input.Title
		p.Description = input.Description
		p.Price = input.Price
		p.Category = input.Category
		p.IsFeatured = input.IsFeatured
		p.Stock = input.Stock
		response.JSON(w, http.StatusOK, "Product updated successfully", map[string]interface{}{"product": *p})
		return
	}
	response.NotFound(w, "Product not found")
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.products {
		if p.ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			response.JSON(w, http.StatusOK, "Product deleted successfully", nil)
			return
		}
	}
	response.NotFound(w, "Product not found")
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	uid := userID(r)
	req.Authenticated = uid != ""
	if err := s.validator.Struct(req.CheckoutForm); err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	if len(req.Items) == 0 {
		response.BadRequest(w, "Order must contain at least one item")
		return
	}

	var total float64
	for _, item := range req.Items {
		if item.Quantity < 1 {
			response.BadRequest(w, "Item quantity must be at least 1")
			return
		}
		total += item.Price * float64(item.Quantity)
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		Items:         req.Items,
		TotalAmount:   total,
		Status:        domain.OrderPending,
		PaymentStatus: "Pending",
		Address:       req.Address,
		City:          req.City,
		ContactNumber: req.ContactNumber,
		CreatedAt:     time.Now(),
	}

	s.mu.Lock()
	s.orders = append(s.orders, orderRecord{userID: uid, order: order})
	s.mu.Unlock()

	response.Created(w, "Order placed successfully", map[string]interface{}{"order": order})
}

func (s *Server) userOrders(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	s.listOrders(w, r, func(rec orderRecord) bool { return rec.userID == uid })
}

func (s *Server) allOrders(w http.ResponseWriter, r *http.Request) {
	s.listOrders(w, r, func(orderRecord) bool { return true })
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request, keep func(orderRecord) bool) {
	q := r.URL.Query()
	page, limit := pageParams(q.Get("page"), q.Get("limit"))
	status := domain.OrderStatus(q.Get("status"))

	s.mu.Lock()
	var matched []domain.Order
	for _, rec := range s.orders {
		if !keep(rec) {
			continue
		}
		if status != "" && rec.order.Status != status {
			continue
		}
		matched = append(matched, rec.order)
	}
	s.mu.Unlock()

	lo, hi, pagination := paginate(len(matched), page, limit)
	response.Success(w, domain.OrderPage{
		Orders:     append([]domain.Order{}, matched[lo:hi]...),
		Pagination: pagination,
	})
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status domain.OrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		response.BadRequest(w, "Invalid order status")
		return
	}

	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].order.ID == id {
			s.orders[i].order.Status = req.Status
			response.JSON(w, http.StatusOK, "Order status updated", map[string]interface{}{"order": s.orders[i].order})
			return
		}
	}
	response.NotFound(w, "Order not found")
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d := domain.Dashboard{
		TotalUsers:    len(s.accounts),
		TotalOrders:   len(s.orders),
		TotalProducts: len(s.products),
	}
	for _, rec := range s.orders {
		d.TotalRevenue += rec.order.TotalAmount
		if rec.order.Status == domain.OrderPending {
			d.PendingOrders++
		}
	}
	s.mu.Unlock()

	response.Success(w, d)
}

func (s *Server) accountByID(id string) *account {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func pageParams(pageStr, limitStr string) (int, int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = 10
	}
	return page, limit
}

func paginate(total, page, limit int) (int, int, domain.Pagination) {
	lo := (page - 1) * limit
	if lo > total {
		lo = total
	}
	hi := lo + limit
	if hi > total {
		hi = total
	}
	return lo, hi, domain.Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}
}
