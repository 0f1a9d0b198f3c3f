package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

// AddToWishlist inserts a wishlist entry. Adding a product that is already
// wishlisted is a no-op, not an error.
func AddToWishlist(ctx context.Context, db *sql.DB, userID, productID int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO wishlist_entries (user_id, product_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, product_id) DO NOTHING`,
		userID, productID)
	if err != nil {
		if database.IsForeignKeyViolation(err, "user_id") {
			return database.ErrUserNotFound
		}
		if database.IsForeignKeyViolation(err, "product_id") {
			return database.ErrProductNotFound
		}
		return fmt.Errorf("add to wishlist: %w", err)
	}

	return nil
}

// RemoveFromWishlist deletes a wishlist entry if present.
func RemoveFromWishlist(ctx context.Context, db *sql.DB, userID, productID int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM wishlist_entries WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("remove from wishlist: %w", err)
	}

	return nil
}

func GetWishlist(ctx context.Context, db *sql.DB, userID int64) ([]models.WishlistEntry, error) {
	query := `
		SELECT w.id, w.user_id, w.product_id, w.created_at,
		       p.id, p.name, p.description, p.price, p.stock_quantity,
		       p.category_id, p.featured, p.rating, p.review_count,
		       p.created_at, p.updated_at
		FROM wishlist_entries w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.id`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get wishlist: %w", err)
	}
	defer rows.Close()

	var entries []models.WishlistEntry
	for rows.Next() {
		var entry models.WishlistEntry
		var product models.Product
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.ProductID,
			&entry.CreatedAt,
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
			return nil, fmt.Errorf("scan wishlist entry: %w", err)
		}

		entry.Product = &product
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

// MoveToCart adds a wishlisted product to the cart and removes the wishlist
// entry, in one transaction. If the cart add fails for any reason the
// wishlist entry stays put.
func MoveToCart(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return database.ErrInvalidQuantity
	}

	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cart_lines (user_id, product_id, quantity, created_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (user_id, product_id)
			 DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity`,
			userID, productID, quantity)
		if err != nil {
			if database.IsForeignKeyViolation(err, "product_id") {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("add cart item: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM wishlist_entries WHERE user_id = $1 AND product_id = $2`,
			userID, productID)
		if err != nil {
			return fmt.Errorf("remove from wishlist: %w", err)
		}

		return nil
	})
}
