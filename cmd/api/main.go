package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/payment"
	"github.com/safar/go-storefront/internal/pricing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger.Info("connected to database")

	srv := &server{
		db:     db,
		logger: logger,
		policy: pricing.Policy{
			TaxRate:     cfg.Pricing.TaxRate,
			ShippingFee: cfg.Pricing.ShippingFee,
		},
		payments: payment.AcceptAll{},
	}

	r := chi.NewRouter()

	r.Get("/products", srv.handleQueryProducts)
	r.Post("/products", srv.handleCreateProduct)
	r.Get("/products/{id}", srv.handleGetProduct)
	r.Put("/products/{id}", srv.handleUpdateProduct)
	r.Delete("/products/{id}", srv.handleDeleteProduct)
	r.Get("/products/{id}/reviews", srv.handleListReviews)
	r.Post("/products/{id}/reviews", srv.handleAddReview)

	r.Get("/categories", srv.handleListCategories)
	r.Post("/categories", srv.handleCreateCategory)

	r.Get("/cart", srv.handleGetCart)
	r.Delete("/cart", srv.handleClearCart)
	r.Post("/cart/items", srv.handleAddCartItem)
	r.Put("/cart/items/{lineID}", srv.handleUpdateCartQuantity)
	r.Delete("/cart/items/{lineID}", srv.handleRemoveCartItem)

	r.Get("/wishlist", srv.handleGetWishlist)
	r.Post("/wishlist", srv.handleAddToWishlist)
	r.Delete("/wishlist/{productID}", srv.handleRemoveFromWishlist)
	r.Post("/wishlist/{productID}/move", srv.handleMoveToCart)

	r.Post("/orders", srv.handlePlaceOrder)
	r.Get("/orders", srv.handleListOrders)
	r.Get("/orders/{id}", srv.handleGetOrder)
	r.Put("/orders/{id}/status", srv.handleUpdateOrderStatus)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server starting", "port", cfg.Server.Port)
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
