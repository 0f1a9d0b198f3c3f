package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestBuildProductQueryEmptyFilter(t *testing.T) {
	clauses, args := buildProductQuery(ProductFilter{})

	assert.Equal(t, "ORDER BY p.name ASC, p.id ASC", clauses)
	assert.Empty(t, args)
}

func TestBuildProductQuerySearch(t *testing.T) {
	clauses, args := buildProductQuery(ProductFilter{Search: "lamp"})

	assert.Contains(t, clauses, "p.name ILIKE $1 OR p.description ILIKE $1")
	assert.Equal(t, []interface{}{"%lamp%"}, args)
}

func TestBuildProductQueryPriceRange(t *testing.T) {
	clauses, args := buildProductQuery(ProductFilter{
		MinPrice: decPtr("10"),
		MaxPrice: decPtr("50"),
		Sort:     SortPriceAsc,
	})

	assert.Contains(t, clauses, "p.price >= $1")
	assert.Contains(t, clauses, "p.price <= $2")
	assert.Contains(t, clauses, "ORDER BY p.price ASC, p.id ASC")
	assert.Len(t, args, 2)
}

func TestBuildProductQueryAllFilters(t *testing.T) {
	minRating := 4.0
	clauses, args := buildProductQuery(ProductFilter{
		Search:    "desk",
		Category:  "furniture",
		MinPrice:  decPtr("10"),
		MaxPrice:  decPtr("500"),
		MinRating: &minRating,
		Sort:      SortRatingDesc,
	})

	assert.Contains(t, clauses, "WHERE ")
	assert.Contains(t, clauses, "c.slug = $2")
	assert.Contains(t, clauses, "p.rating >= $5")
	assert.Contains(t, clauses, "ORDER BY p.rating DESC, p.id ASC")
	assert.Len(t, args, 5)
}

func TestBuildProductQuerySortKeys(t *testing.T) {
	tests := []struct {
		sort  string
		order string
	}{
		{SortPriceAsc, "ORDER BY p.price ASC, p.id ASC"},
		{SortPriceDesc, "ORDER BY p.price DESC, p.id ASC"},
		{SortRatingDesc, "ORDER BY p.rating DESC, p.id ASC"},
		{SortNewest, "ORDER BY p.created_at DESC, p.id DESC"},
		{SortRelevance, "ORDER BY p.name ASC, p.id ASC"},
		{"bogus-key", "ORDER BY p.name ASC, p.id ASC"},
		{"", "ORDER BY p.name ASC, p.id ASC"},
	}

	for _, tt := range tests {
		clauses, _ := buildProductQuery(ProductFilter{Sort: tt.sort})
		assert.Equal(t, tt.order, clauses, "sort key %q", tt.sort)
	}
}
