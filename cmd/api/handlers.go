package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/payment"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/safar/go-storefront/internal/store"
	"github.com/shopspring/decimal"
)

type server struct {
	db       *sql.DB
	logger   *slog.Logger
	policy   pricing.Policy
	payments payment.Authorizer
}

// currentUserID reads the identity established by the upstream identity
// provider. The core never authenticates; it only requires that some
// identity is present.
func currentUserID(r *http.Request) (int64, error) {
	header := r.Header.Get("X-User-ID")
	if header == "" {
		return 0, database.ErrUnauthenticated
	}

	id, err := strconv.ParseInt(header, 10, 64)
	if err != nil || id < 1 {
		return 0, database.ErrUnauthenticated
	}

	return id, nil
}

func (s *server) requireAdmin(r *http.Request) (int64, error) {
	userID, err := currentUserID(r)
	if err != nil {
		return 0, err
	}

	user, err := store.GetUser(r.Context(), s.db, userID)
	if err != nil {
		return 0, err
	}
	if user.Role != models.RoleAdmin {
		return 0, database.ErrUnauthenticated
	}

	return userID, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrCartLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrInvalidQuantity),
		errors.Is(err, database.ErrEmptyCart),
		errors.Is(err, database.ErrInvalidStatusTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, database.ErrDuplicateReview),
		errors.Is(err, database.ErrInsufficientStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) respondStoreError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// --- catalog ---

func (s *server) handleQueryProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.ProductFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	}

	if v := q.Get("min_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid min_price")
			return
		}
		filter.MinPrice = &d
	}
	if v := q.Get("max_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid max_price")
			return
		}
		filter.MaxPrice = &d
	}
	if v := q.Get("min_rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid min_rating")
			return
		}
		filter.MinRating = &f
	}

	products, err := store.QueryProducts(r.Context(), s.db, filter)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, products)
}

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock_quantity"`
	CategoryID  int64  `json:"category_id"`
	Featured    bool   `json:"featured"`
}

func (s *server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondStoreError(w, err)
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		respondError(w, http.StatusBadRequest, "Invalid price")
		return
	}
	if req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "Invalid stock quantity")
		return
	}

	product, err := store.CreateProduct(r.Context(), s.db, req.Name, req.Description, price, req.Stock, req.CategoryID, req.Featured)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

func (s *server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := store.GetProduct(r.Context(), s.db, id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (s *server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondStoreError(w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		respondError(w, http.StatusBadRequest, "Invalid price")
		return
	}
	if req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "Invalid stock quantity")
		return
	}

	product, err := store.UpdateProduct(r.Context(), s.db, id, req.Name, req.Description, price, req.Stock, req.CategoryID, req.Featured)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (s *server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondStoreError(w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	if err := store.DeleteProduct(r.Context(), s.db, id); err != nil {
		s.respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- reviews ---

func (s *server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	reviews, err := store.ListReviews(r.Context(), s.db, id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, reviews)
}

func (s *server) handleAddReview(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	productID, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		respondError(w, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}

	review, err := store.AddReview(r.Context(), s.db, userID, productID, req.Rating, req.Comment)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, review)
}

// --- categories ---

func (s *server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListCategories(r.Context(), s.db)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, categories)
}

func (s *server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondStoreError(w, err)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	category, err := store.CreateCategory(r.Context(), s.db, req.Name, req.Slug, req.Description)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, category)
}

// --- cart ---

type cartResponse struct {
	Lines   []models.CartLine `json:"lines"`
	Summary pricing.Breakdown `json:"summary"`
}

func (s *server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	lines, err := store.GetCart(r.Context(), s.db, userID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	// Cart page pricing: no shipping, empty carts allowed.
	summary, err := pricing.Price(lines, pricing.ContextPreview, s.policy)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse{Lines: lines, Summary: summary})
}

func (s *server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	var req struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	line, err := store.AddCartItem(r.Context(), s.db, userID, req.ProductID, req.Quantity)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, line)
}

func (s *server) handleUpdateCartQuantity(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	lineID, err := pathID(r, "lineID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid line ID")
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := store.UpdateCartQuantity(r.Context(), s.db, userID, lineID, req.Quantity); err != nil {
		s.respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	lineID, err := pathID(r, "lineID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid line ID")
		return
	}

	if err := store.RemoveCartItem(r.Context(), s.db, userID, lineID); err != nil {
		s.respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	if err := store.ClearCart(r.Context(), s.db, userID); err != nil {
		s.respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- wishlist ---

func (s *server) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	entries, err := store.GetWishlist(r.Context(), s.db, userID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

func (s *server) handleAddToWishlist(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	var req struct {
		ProductID int64 `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := store.AddToWishlist(r.Context(), s.db, userID, req.ProductID); err != nil {
		s.respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	productID, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	if err := store.RemoveFromWishlist(r.Context(), s.db, userID, productID); err != nil {
		s.respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMoveToCart(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	productID, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if err := store.MoveToCart(r.Context(), s.db, userID, productID, req.Quantity); err != nil {
		s.respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- orders ---

func (s *server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	var req struct {
		ShippingAddress string `json:"shipping_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ShippingAddress == "" {
		respondError(w, http.StatusBadRequest, "Shipping address is required")
		return
	}

	lines, err := store.GetCart(r.Context(), s.db, userID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	breakdown, err := pricing.Price(lines, pricing.ContextCheckout, s.policy)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	auth, err := s.payments.Authorize(r.Context(), userID, breakdown.Total)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if !auth.Authorized {
		respondError(w, http.StatusPaymentRequired, "Payment was declined")
		return
	}

	order, err := store.PlaceOrder(r.Context(), s.db, userID, req.ShippingAddress, s.policy)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.logger.Info("order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", userID,
		"total", order.TotalAmount,
		"payment_ref", auth.Reference,
	)

	respondJSON(w, http.StatusCreated, order)
}

func (s *server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	page, err := store.ListOrdersCursor(r.Context(), s.db, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (s *server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := store.GetOrder(r.Context(), s.db, id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	// Owners see their own orders; admins see all.
	if order.UserID != userID {
		if _, err := s.requireAdmin(r); err != nil {
			s.respondStoreError(w, database.ErrOrderNotFound)
			return
		}
	}

	respondJSON(w, http.StatusOK, order)
}

func (s *server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondStoreError(w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := store.UpdateOrderStatus(r.Context(), s.db, id, req.Status)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}
