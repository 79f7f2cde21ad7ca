package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"autoparts/internal/model"
	"autoparts/internal/testkit"
)

func TestProductFilter_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		in        ProductFilter
		wantPage  int
		wantLimit int
	}{
		{"defaults", ProductFilter{}, 1, DefaultPageLimit},
		{"negative page", ProductFilter{Page: -3, Limit: 5}, 1, 5},
		{"limit capped", ProductFilter{Page: 2, Limit: 1000}, 2, MaxPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}

	assert.Equal(t, 10, ProductFilter{Page: 3, Limit: 5}.Offset())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "100!% cotton!_x!!", escapeLike("100% cotton_x!"))
}

func TestProductRepository_List(t *testing.T) {
	gdb := testkit.NewDB(t)
	repo := NewProductRepository(gdb)
	ctx := context.Background()

	brakes := testkit.CreateCategory(t, gdb, "Brakes", "brakes")
	filters := testkit.CreateCategory(t, gdb, "Filters", "filters")

	for i := 0; i < 5; i++ {
		testkit.CreateProduct(t, gdb, brakes.ID, fmt.Sprintf("Brake Pad %d", i), "10.00", 5)
	}
	testkit.CreateProduct(t, gdb, filters.ID, "Oil Filter", "35.50", 10)
	discount := testkit.CreateProduct(t, gdb, filters.ID, "Air Filter 100%", "20.00", 10)
	hidden := testkit.CreateProduct(t, gdb, brakes.ID, "Hidden Pad", "1.00", 1)
	require.NoError(t, repo.Deactivate(ctx, hidden.ID))

	t.Run("all active products paginated", func(t *testing.T) {
		products, total, err := repo.List(ctx, ProductFilter{Page: 2, Limit: 3})
		require.NoError(t, err)
		assert.EqualValues(t, 7, total)
		assert.Len(t, products, 3)
	})

	t.Run("last partial page", func(t *testing.T) {
		products, total, err := repo.List(ctx, ProductFilter{Page: 3, Limit: 3})
		require.NoError(t, err)
		assert.EqualValues(t, 7, total)
		assert.Len(t, products, 1)
	})

	t.Run("page past the end", func(t *testing.T) {
		products, total, err := repo.List(ctx, ProductFilter{Page: 9, Limit: 3})
		require.NoError(t, err)
		assert.EqualValues(t, 7, total)
		assert.Empty(t, products)
	})

	t.Run("category filter carries labels", func(t *testing.T) {
		products, total, err := repo.List(ctx, ProductFilter{CategorySlug: "filters"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		for _, p := range products {
			assert.Equal(t, "filters", p.CategorySlug)
			assert.Equal(t, "Filters", p.CategoryName)
		}
	})

	t.Run("search is case-insensitive", func(t *testing.T) {
		products, total, err := repo.List(ctx, ProductFilter{Search: "BRAKE"})
		require.NoError(t, err)
		assert.EqualValues(t, 5, total)
		assert.Len(t, products, 5)
	})

	t.Run("wildcards in search are literal", func(t *testing.T) {
		products, _, err := repo.List(ctx, ProductFilter{Search: "100%"})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, discount.ID, products[0].ID)

		products, _, err = repo.List(ctx, ProductFilter{Search: "%"})
		require.NoError(t, err)
		assert.Len(t, products, 1)
	})

	t.Run("filters combine", func(t *testing.T) {
		_, total, err := repo.List(ctx, ProductFilter{CategorySlug: "brakes", Search: "oil"})
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestProductRepository_SoftDelete(t *testing.T) {
	gdb := testkit.NewDB(t)
	repo := NewProductRepository(gdb)
	ctx := context.Background()

	cat := testkit.CreateCategory(t, gdb, "Engine", "engine")
	p := testkit.CreateProduct(t, gdb, cat.ID, "Spark Plug", "45.00", 100)

	found, err := repo.FindActiveByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "engine", found.CategorySlug)

	require.NoError(t, repo.Deactivate(ctx, p.ID))

	_, err = repo.FindActiveByID(ctx, p.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	row, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, row.Active)
}

func TestProductRepository_CreateKeepsInactiveFlag(t *testing.T) {
	gdb := testkit.NewDB(t)
	repo := NewProductRepository(gdb)
	ctx := context.Background()

	cat := testkit.CreateCategory(t, gdb, "Engine", "engine")
	p := &model.Product{Name: "Draft", CategoryID: cat.ID, Active: false, Images: model.StringList{"/a.png"}}
	require.NoError(t, repo.Create(ctx, p))

	row, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, row.Active)
	assert.Equal(t, model.StringList{"/a.png"}, row.Images)
}

func TestProductRepository_Stock(t *testing.T) {
	gdb := testkit.NewDB(t)
	repo := NewProductRepository(gdb)
	ctx := context.Background()

	cat := testkit.CreateCategory(t, gdb, "Engine", "engine")
	p := testkit.CreateProduct(t, gdb, cat.ID, "Spark Plug", "45.00", 10)

	ok, err := repo.DecrementStock(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DecrementStock(ctx, p.ID, 8)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.IncrementStock(ctx, p.ID, 1))

	row, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, row.Stock)

	locked, err := repo.FindByIDsForUpdate(ctx, []uint{p.ID, 999})
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, p.ID, locked[0].ID)
}
