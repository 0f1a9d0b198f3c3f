package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

// AddReview records a user's rating for a product and refreshes the
// product's denormalized rating and review_count in the same transaction,
// so the product row never disagrees with its reviews. A second review by
// the same user for the same product fails with ErrDuplicateReview.
func AddReview(ctx context.Context, db *sql.DB, userID, productID int64, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("add review: rating must be between 1 and 5")
	}

	var review *models.Review

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		created := &models.Review{}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO reviews (product_id, user_id, rating, comment, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 RETURNING id, product_id, user_id, rating, comment, created_at`,
			productID, userID, rating, comment).Scan(
			&created.ID,
			&created.ProductID,
			&created.UserID,
			&created.Rating,
			&created.Comment,
			&created.CreatedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err, "reviews_user_product_key") {
				return database.ErrDuplicateReview
			}
			if database.IsForeignKeyViolation(err, "user_id") {
				return database.ErrUserNotFound
			}
			if database.IsForeignKeyViolation(err, "product_id") {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("insert review: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE products
			 SET rating = (SELECT AVG(rating)::float8 FROM reviews WHERE product_id = $1),
			     review_count = (SELECT COUNT(*) FROM reviews WHERE product_id = $1),
			     updated_at = NOW()
			 WHERE id = $1`,
			productID)
		if err != nil {
			return fmt.Errorf("refresh product rating: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrProductNotFound
		}

		review = created
		return nil
	})

	if err != nil {
		return nil, err
	}

	return review, nil
}

func ListReviews(ctx context.Context, db *sql.DB, productID int64) ([]models.Review, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, user_id, rating, comment, created_at
		 FROM reviews
		 WHERE product_id = $1
		 ORDER BY created_at DESC, id DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var review models.Review
		err := rows.Scan(
			&review.ID,
			&review.ProductID,
			&review.UserID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reviews, nil
}
