package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `p.id, p.name, p.description, p.price, p.stock_quantity,
	p.category_id, p.featured, p.rating, p.review_count, p.created_at, p.updated_at`

// ProductFilter narrows and orders a catalog query. Zero-valued fields are
// not applied. Price and rating bounds are inclusive.
type ProductFilter struct {
	Search    string
	Category  string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	MinRating *float64
	Sort      string
}

const (
	SortRelevance  = "relevance"
	SortPriceAsc   = "price-asc"
	SortPriceDesc  = "price-desc"
	SortRatingDesc = "rating-desc"
	SortNewest     = "newest"
)

// buildProductQuery renders a filter into WHERE/ORDER BY clauses with
// positional args. Kept separate from execution so the rendering is
// testable without a database.
func buildProductQuery(filter ProductFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE %s OR p.description ILIKE %s)", p, p))
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("c.slug = %s", arg(filter.Category)))
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price >= %s", arg(*filter.MinPrice)))
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price <= %s", arg(*filter.MaxPrice)))
	}
	if filter.MinRating != nil {
		conditions = append(conditions, fmt.Sprintf("p.rating >= %s", arg(*filter.MinRating)))
	}

	var sb strings.Builder
	if len(conditions) > 0 {
		sb.WriteString("WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
		sb.WriteString("\n")
	}

	// Secondary id sort keeps ordering stable across equal keys.
	switch filter.Sort {
	case SortPriceAsc:
		sb.WriteString("ORDER BY p.price ASC, p.id ASC")
	case SortPriceDesc:
		sb.WriteString("ORDER BY p.price DESC, p.id ASC")
	case SortRatingDesc:
		sb.WriteString("ORDER BY p.rating DESC, p.id ASC")
	case SortNewest:
		sb.WriteString("ORDER BY p.created_at DESC, p.id DESC")
	default:
		// Covers "relevance" (no ranking backend) and unknown keys.
		sb.WriteString("ORDER BY p.name ASC, p.id ASC")
	}

	return sb.String(), args
}

// QueryProducts returns all products matching the filter. There is no
// server-side pagination; callers page client-side.
func QueryProducts(ctx context.Context, db *sql.DB, filter ProductFilter) ([]models.Product, error) {
	clauses, args := buildProductQuery(filter)

	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		%s`, productColumns, clauses)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner, product *models.Product) error {
	return row.Scan(
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
}

func CreateProduct(ctx context.Context, db *sql.DB, name, description string, price decimal.Decimal, stock int, categoryID int64, featured bool) (*models.Product, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("create product: price must be non-negative")
	}
	if stock < 0 {
		return nil, fmt.Errorf("create product: stock must be non-negative")
	}

	product := &models.Product{}

	query := fmt.Sprintf(`
		INSERT INTO products (name, description, price, stock_quantity, category_id, featured, rating, review_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, NOW(), NOW())
		RETURNING %s`, strings.ReplaceAll(productColumns, "p.", ""))

	err := scanProduct(db.QueryRowContext(ctx, query, name, description, price, stock, categoryID, featured), product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		WHERE p.id = $1`, productColumns)

	err := scanProduct(db.QueryRowContext(ctx, query, id), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// UpdateProduct replaces the editable product fields. Rating and review
// count are owned by the review store and never set here.
func UpdateProduct(ctx context.Context, db *sql.DB, id int64, name, description string, price decimal.Decimal, stock int, categoryID int64, featured bool) (*models.Product, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("update product: price must be non-negative")
	}
	if stock < 0 {
		return nil, fmt.Errorf("update product: stock must be non-negative")
	}

	product := &models.Product{}

	query := fmt.Sprintf(`
		UPDATE products
		SET name = $1, description = $2, price = $3, stock_quantity = $4,
		    category_id = $5, featured = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING %s`, strings.ReplaceAll(productColumns, "p.", ""))

	err := scanProduct(db.QueryRowContext(ctx, query, name, description, price, stock, categoryID, featured, id), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

func DeleteProduct(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return fmt.Errorf("delete product: referenced by existing orders: %w", err)
		}
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}
