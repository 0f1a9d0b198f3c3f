package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/shopspring/decimal"
)

func TestPlaceOrderRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "orders1@example.com")
	category := createTestCategory(t, db, "General", "general")
	productA := createTestProduct(t, db, category.ID, "Product A", "20.00", 50)
	productB := createTestProduct(t, db, category.ID, "Product B", "15.50", 30)

	if _, err := store.AddCartItem(ctx, db, user.ID, productA.ID, 2); err != nil {
		t.Fatalf("Add product A: %v", err)
	}
	if _, err := store.AddCartItem(ctx, db, user.ID, productB.ID, 1); err != nil {
		t.Fatalf("Add product B: %v", err)
	}

	order, err := store.PlaceOrder(ctx, db, user.ID, "1 Main St\nSpringfield", checkoutPolicy())
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	// subtotal 55.50, tax 5.55, shipping 10.00, total 71.05
	if !order.Subtotal.Equal(decimal.RequireFromString("55.50")) {
		t.Errorf("Expected subtotal 55.50, got %s", order.Subtotal)
	}
	if !order.Tax.Equal(decimal.RequireFromString("5.55")) {
		t.Errorf("Expected tax 5.55, got %s", order.Tax)
	}
	if !order.ShippingFee.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("Expected shipping 10.00, got %s", order.ShippingFee)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("71.05")) {
		t.Errorf("Expected total 71.05, got %s", order.TotalAmount)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected status pending, got %s", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("Expected 2 order items, got %d", len(order.Items))
	}

	lines, err := store.GetCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("Cart should be empty after checkout, got %d lines", len(lines))
	}

	fetched, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if !fetched.TotalAmount.Equal(order.TotalAmount) {
		t.Errorf("Fetched total %s does not match placed total %s", fetched.TotalAmount, order.TotalAmount)
	}
	if len(fetched.Items) != 2 {
		t.Fatalf("Expected 2 fetched items, got %d", len(fetched.Items))
	}

	stockA, err := store.GetProduct(ctx, db, productA.ID)
	if err != nil {
		t.Fatalf("Get product A: %v", err)
	}
	if stockA.StockQuantity != 48 {
		t.Errorf("Expected product A stock 48, got %d", stockA.StockQuantity)
	}
}

func TestPlaceOrderSnapshotsPriceAtCommit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "orders2@example.com")
	category := createTestCategory(t, db, "General", "general")
	product := createTestProduct(t, db, category.ID, "Lamp", "20.00", 50)

	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 1); err != nil {
		t.Fatalf("Add cart item: %v", err)
	}

	// Price changes between add-to-cart and checkout; checkout uses the
	// price current at commit time.
	if _, err := store.UpdateProduct(ctx, db, product.ID,
		product.Name, product.Description, decimal.RequireFromString("25.00"),
		product.StockQuantity, product.CategoryID, product.Featured); err != nil {
		t.Fatalf("Update product: %v", err)
	}

	order, err := store.PlaceOrder(ctx, db, user.ID, "1 Main St", checkoutPolicy())
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	if !order.Items[0].UnitPrice.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("Expected snapshot price 25.00, got %s", order.Items[0].UnitPrice)
	}

	// Later price changes never touch committed items.
	if _, err := store.UpdateProduct(ctx, db, product.ID,
		product.Name, product.Description, decimal.RequireFromString("99.00"),
		product.StockQuantity, product.CategoryID, product.Featured); err != nil {
		t.Fatalf("Update product again: %v", err)
	}

	fetched, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if !fetched.Items[0].UnitPrice.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("Snapshot price changed to %s", fetched.Items[0].UnitPrice)
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "orders3@example.com")

	_, err := store.PlaceOrder(ctx, db, user.ID, "1 Main St", checkoutPolicy())
	if !errors.Is(err, database.ErrEmptyCart) {
		t.Errorf("Expected ErrEmptyCart, got %v", err)
	}
}

func TestPlaceOrderInsufficientStockLeavesCartIntact(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "orders4@example.com")
	category := createTestCategory(t, db, "General", "general")
	product := createTestProduct(t, db, category.ID, "Lamp", "20.00", 1)

	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 2); err != nil {
		t.Fatalf("Add cart item: %v", err)
	}

	_, err := store.PlaceOrder(ctx, db, user.ID, "1 Main St", checkoutPolicy())
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	lines, err := store.GetCart(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Error("Cart should be untouched after failed checkout")
	}

	page, err := store.ListOrdersCursor(ctx, db, user.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if orders, ok := page.Items.([]models.Order); ok && len(orders) != 0 {
		t.Errorf("Expected no orders, got %d", len(orders))
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "orders5@example.com")
	category := createTestCategory(t, db, "General", "general")
	product := createTestProduct(t, db, category.ID, "Lamp", "20.00", 50)

	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 1); err != nil {
		t.Fatalf("Add cart item: %v", err)
	}
	order, err := store.PlaceOrder(ctx, db, user.ID, "1 Main St", checkoutPolicy())
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	for _, status := range []string{
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	} {
		updated, err := store.UpdateOrderStatus(ctx, db, order.ID, status)
		if err != nil {
			t.Fatalf("Advance to %s: %v", status, err)
		}
		if updated.Status != status {
			t.Errorf("Expected status %s, got %s", status, updated.Status)
		}
	}

	// Delivered is terminal: no moving backward, no cancelling.
	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusProcessing); !errors.Is(err, database.ErrInvalidStatusTransition) {
		t.Errorf("Expected ErrInvalidStatusTransition, got %v", err)
	}
	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusCancelled); !errors.Is(err, database.ErrInvalidStatusTransition) {
		t.Errorf("Expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestCancelOrderFromPending(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "orders6@example.com")
	category := createTestCategory(t, db, "General", "general")
	product := createTestProduct(t, db, category.ID, "Lamp", "20.00", 50)

	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 1); err != nil {
		t.Fatalf("Add cart item: %v", err)
	}
	order, err := store.PlaceOrder(ctx, db, user.ID, "1 Main St", checkoutPolicy())
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}

	updated, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("Cancel order: %v", err)
	}
	if updated.Status != models.OrderStatusCancelled {
		t.Errorf("Expected cancelled, got %s", updated.Status)
	}

	// Cancelled is terminal.
	if _, err := store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusProcessing); !errors.Is(err, database.ErrInvalidStatusTransition) {
		t.Errorf("Expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestListOrdersCursor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "orders7@example.com")
	category := createTestCategory(t, db, "General", "general")
	product := createTestProduct(t, db, category.ID, "Lamp", "20.00", 100)

	for i := 0; i < 15; i++ {
		if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 1); err != nil {
			t.Fatalf("Add cart item %d: %v", i, err)
		}
		if _, err := store.PlaceOrder(ctx, db, user.ID, "1 Main St", checkoutPolicy()); err != nil {
			t.Fatalf("Place order %d: %v", i, err)
		}
	}

	page1, err := store.ListOrdersCursor(ctx, db, user.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}

	if !page1.HasMore {
		t.Error("Page 1 should have more results")
	}
	if page1.NextCursor == "" {
		t.Error("Page 1 should have a next cursor")
	}

	page2, err := store.ListOrdersCursor(ctx, db, user.ID, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}

	if page2.HasMore {
		t.Error("Page 2 should not have more results")
	}
}
