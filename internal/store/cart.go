package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

// AddCartItem adds a product to the user's cart. If a line for
// (user, product) already exists its quantity is incremented by quantity;
// the upsert is a single atomic statement, so concurrent adds from multiple
// tabs merge instead of overwriting each other.
func AddCartItem(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	line := &models.CartLine{}

	query := `
		INSERT INTO cart_lines (user_id, product_id, quantity, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING id, user_id, product_id, quantity, created_at`

	err := db.QueryRowContext(ctx, query, userID, productID, quantity).Scan(
		&line.ID,
		&line.UserID,
		&line.ProductID,
		&line.Quantity,
		&line.CreatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err, "user_id") {
			return nil, database.ErrUserNotFound
		}
		if database.IsForeignKeyViolation(err, "product_id") {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	return line, nil
}

// UpdateCartQuantity sets the quantity of a cart line exactly. Quantities
// below one are rejected; deletion is a separate operation with a separate
// contract, never an implicit side effect of an update.
func UpdateCartQuantity(ctx context.Context, db *sql.DB, userID, lineID int64, quantity int) error {
	if quantity < 1 {
		return database.ErrInvalidQuantity
	}

	result, err := db.ExecContext(ctx,
		`UPDATE cart_lines
		 SET quantity = $1
		 WHERE id = $2 AND user_id = $3`,
		quantity, lineID, userID)
	if err != nil {
		return fmt.Errorf("update cart quantity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrCartLineNotFound
	}

	return nil
}

// RemoveCartItem deletes a cart line. Removing a line that does not exist
// is a no-op.
func RemoveCartItem(ctx context.Context, db *sql.DB, userID, lineID int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE id = $1 AND user_id = $2`,
		lineID, userID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	return nil
}

// GetCart returns the user's cart lines in insertion order, each joined
// with live product data. Line totals use the current catalog price, which
// may differ from the price shown when the line was added.
func GetCart(ctx context.Context, db *sql.DB, userID int64) ([]models.CartLine, error) {
	query := `
		SELECT cl.id, cl.user_id, cl.product_id, cl.quantity, cl.created_at,
		       p.id, p.name, p.description, p.price, p.stock_quantity,
		       p.category_id, p.featured, p.rating, p.review_count,
		       p.created_at, p.updated_at
		FROM cart_lines cl
		JOIN products p ON p.id = cl.product_id
		WHERE cl.user_id = $1
		ORDER BY cl.id`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
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
			&product.Description,
			&product.Price,
			&product.StockQuantity,
			&product.CategoryID,
			&product.Featured,
			&product.Rating,
			&product.ReviewCount,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}

		line.Product = &product
		line.LineTotal = product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

// ClearCart removes every line in the user's cart.
func ClearCart(ctx context.Context, db *sql.DB, userID int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE user_id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	return nil
}
