package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/shopspring/decimal"
)

func generateOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

// PlaceOrder converts the user's cart into an immutable order. In a single
// serializable transaction it locks the cart's product rows, prices the
// cart under the checkout policy, writes the order and one item per line
// with the product price snapshotted at commit time, decrements stock, and
// clears the cart. A failure at any point applies nothing: either no order
// exists and the cart is intact, or the order is complete and the cart is
// empty.
func PlaceOrder(ctx context.Context, db *sql.DB, userID int64, shippingAddress string, policy pricing.Policy) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
			userID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return database.ErrUserNotFound
		}

		lines, err := lockCartLines(ctx, tx, userID)
		if err != nil {
			return err
		}

		breakdown, err := pricing.Price(lines, pricing.ContextCheckout, policy)
		if err != nil {
			return err
		}

		created := &models.Order{}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_number, status, subtotal, tax, shipping_fee, total_amount, shipping_address, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			 RETURNING id, user_id, order_number, status, subtotal, tax, shipping_fee, total_amount, shipping_address, created_at, updated_at`,
			userID, generateOrderNumber(), models.OrderStatusPending,
			breakdown.Subtotal, breakdown.Tax, breakdown.Shipping, breakdown.Total,
			shippingAddress).Scan(
			&created.ID,
			&created.UserID,
			&created.OrderNumber,
			&created.Status,
			&created.Subtotal,
			&created.Tax,
			&created.ShippingFee,
			&created.TotalAmount,
			&created.ShippingAddress,
			&created.CreatedAt,
			&created.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range lines {
			unitPrice := line.Product.Price
			subtotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))

			item := models.OrderItem{}
			err = tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())
				 RETURNING id, order_id, product_id, quantity, unit_price, subtotal, created_at`,
				created.ID, line.ProductID, line.Quantity, unitPrice, subtotal).Scan(
				&item.ID,
				&item.OrderID,
				&item.ProductID,
				&item.Quantity,
				&item.UnitPrice,
				&item.Subtotal,
				&item.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			created.Items = append(created.Items, item)
		}

		for _, line := range lines {
			result, err := tx.ExecContext(ctx,
				`UPDATE products
				 SET stock_quantity = stock_quantity - $1,
				     updated_at = NOW()
				 WHERE id = $2
				   AND stock_quantity >= $1`,
				line.Quantity, line.ProductID)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}

			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("get rows affected: %w", err)
			}

			if rowsAffected == 0 {
				return database.ErrInsufficientStock
			}
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM cart_lines WHERE user_id = $1`,
			userID)
		if err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		order = created
		return nil
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// lockCartLines loads the user's cart lines with their products, locking
// the product rows so prices and stock cannot shift under the commit.
func lockCartLines(ctx context.Context, tx *sql.Tx, userID int64) ([]models.CartLine, error) {
	query := `
		SELECT cl.id, cl.user_id, cl.product_id, cl.quantity, cl.created_at,
		       p.id, p.name, p.price, p.stock_quantity
		FROM cart_lines cl
		JOIN products p ON p.id = cl.product_id
		WHERE cl.user_id = $1
		ORDER BY cl.id
		FOR UPDATE OF p`

	rows, err := tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var line models.CartLine
		var product models.Product
		err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.ProductID,
			&line.Quantity,
			&line.CreatedAt,
			&product.ID,
			&product.Name,
			&product.Price,
			&product.StockQuantity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}

		line.Product = &product
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, user_id, order_number, status, subtotal, tax, shipping_fee, total_amount, shipping_address, created_at, updated_at
		FROM orders
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.Subtotal,
		&order.Tax,
		&order.ShippingFee,
		&order.TotalAmount,
		&order.ShippingAddress,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	itemsQuery := `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := db.QueryContext(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	order.Items = items

	return order, nil
}

// UpdateOrderStatus advances an order through the fulfillment progression.
// Transitions only move forward; cancellation is allowed from pending and
// processing only.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID int64, newStatus string) (*models.Order, error) {
	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`,
			orderID).Scan(&current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !models.CanTransition(current, newStatus) {
			return fmt.Errorf("%w: %s -> %s", database.ErrInvalidStatusTransition, current, newStatus)
		}

		updated := &models.Order{}
		err = tx.QueryRowContext(ctx,
			`UPDATE orders
			 SET status = $1, updated_at = NOW()
			 WHERE id = $2
			 RETURNING id, user_id, order_number, status, subtotal, tax, shipping_fee, total_amount, shipping_address, created_at, updated_at`,
			newStatus, orderID).Scan(
			&updated.ID,
			&updated.UserID,
			&updated.OrderNumber,
			&updated.Status,
			&updated.Subtotal,
			&updated.Tax,
			&updated.ShippingFee,
			&updated.TotalAmount,
			&updated.ShippingAddress,
			&updated.CreatedAt,
			&updated.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		order = updated
		return nil
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// ListOrdersCursor pages a user's order history newest-first with a keyset
// cursor.
func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, user_id, order_number, status, subtotal, tax, shipping_fee, total_amount, shipping_address, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.OrderNumber,
			&order.Status,
			&order.Subtotal,
			&order.Tax,
			&order.ShippingFee,
			&order.TotalAmount,
			&order.ShippingAddress,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
